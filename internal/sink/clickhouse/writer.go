// Package clickhouse is a reference ResultCallback sink built on
// github.com/ClickHouse/clickhouse-go/v2, adapted from the teacher's
// internal/engine/impl/exact.ClickHouseWriter. The teacher writes
// periodic aggregate snapshots; this repository's ResultCallback instead
// fires once per classified packet, so the writer accumulates results
// into a batch and flushes it either when it reaches FlushSize or when
// FlushInterval elapses, whichever comes first.
package clickhouse

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"NetSpectraDPI/internal/dpimodel"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS classification_results (
    Timestamp   DateTime,
    SrcIP       Nullable(String),
    DstIP       Nullable(String),
    SrcPort     Nullable(UInt16),
    DstPort     Nullable(UInt16),
    Protocol    Nullable(UInt8),
    Status      Int8,
    AppProtocol String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (AppProtocol, Timestamp);
`

// Config mirrors the teacher's config.ClickHouseConfig: host, port,
// database and credentials, plus this writer's own batching knobs.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	FlushSize     int
	FlushInterval time.Duration
}

// Writer accumulates dpimodel.ClassificationResult values and flushes
// them to ClickHouse in batches. Its OnResult method is the
// pipeline.ResultCallback wired into a Pipeline's Deps.
type Writer struct {
	conn driver.Conn
	cfg  Config

	mu      sync.Mutex
	pending []dpimodel.ClassificationResult
	timer   *time.Timer
}

// New connects to ClickHouse and ensures the results table exists,
// following the teacher's connect-then-create-table sequence.
func New(cfg Config) (*Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("clickhouse sink: connect: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("clickhouse sink: create table: %w", err)
	}
	log.Println("clickhouse sink: connected and ensured classification_results table exists")

	w := &Writer{conn: conn, cfg: cfg}
	w.timer = time.AfterFunc(cfg.FlushInterval, w.flushOnTimer)
	return w, nil
}

func connect(cfg Config) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

// OnResult is a pipeline.ResultCallback: it appends result to the
// pending batch and flushes immediately once FlushSize is reached.
func (w *Writer) OnResult(result dpimodel.ClassificationResult) {
	w.mu.Lock()
	w.pending = append(w.pending, result)
	full := len(w.pending) >= w.cfg.FlushSize
	w.mu.Unlock()
	if full {
		w.flush()
	}
}

func (w *Writer) flushOnTimer() {
	w.flush()
	w.timer.Reset(w.cfg.FlushInterval)
}

func (w *Writer) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batchResults := w.pending
	w.pending = nil
	w.mu.Unlock()

	if err := w.writeBatch(batchResults); err != nil {
		log.Printf("clickhouse sink: write failed, dropping %d results: %v", len(batchResults), err)
	}
}

func (w *Writer) writeBatch(results []dpimodel.ClassificationResult) error {
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO classification_results")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	now := time.Now()
	for _, r := range results {
		var srcIP, dstIP any
		if r.FiveTuple.SrcIP != nil {
			srcIP = r.FiveTuple.SrcIP.String()
		}
		if r.FiveTuple.DstIP != nil {
			dstIP = r.FiveTuple.DstIP.String()
		}
		err = batch.Append(
			now,
			srcIP,
			dstIP,
			r.FiveTuple.SrcPort,
			r.FiveTuple.DstPort,
			uint8(r.FiveTuple.Protocol),
			int8(r.Status),
			r.AppProtocol,
		)
		if err != nil {
			return fmt.Errorf("append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	log.Printf("clickhouse sink: wrote %d classification results", len(results))
	return nil
}

// Close flushes any pending results and stops the flush timer.
func (w *Writer) Close() {
	w.timer.Stop()
	w.flush()
}
