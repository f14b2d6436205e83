package pipeline

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
)

// sliceSource replays a fixed list of packets, then returns io.EOF.
type sliceSource struct {
	mu      sync.Mutex
	packets []*dpimodel.PacketRecord
	i       int
}

func (s *sliceSource) ReadPacket(ctx context.Context) (*dpimodel.PacketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i >= len(s.packets) {
		return nil, io.EOF
	}
	p := s.packets[s.i]
	s.i++
	return p, nil
}

// portKeyedExtractor always reports the same parsed outcome for every
// packet, varying only the source port so distinct flows are produced.
type portKeyedExtractor struct{}

func (portKeyedExtractor) Extract(payload []byte, arrival time.Time) dpimodel.ParseResult {
	port := uint16(payload[0])<<8 | uint16(payload[1])
	return dpimodel.ParseResult{
		Status:    dpimodel.StatusOK,
		IPVersion: dpimodel.IPv4,
		FiveTuple: dpimodel.FiveTuple{
			SrcIP:    net.ParseIP("10.0.0.1"),
			DstIP:    net.ParseIP("10.0.0.2"),
			SrcPort:  port,
			DstPort:  443,
			Protocol: dpimodel.ProtoTCP,
		},
	}
}

func packetsWithPorts(n int) []*dpimodel.PacketRecord {
	pkts := make([]*dpimodel.PacketRecord, n)
	for i := 0; i < n; i++ {
		pkts[i] = &dpimodel.PacketRecord{Payload: []byte{byte(i >> 8), byte(i)}, CorrelationData: i}
	}
	return pkts
}

func TestPipelineEndToEndDeliversEveryPacket(t *testing.T) {
	const numPackets = 37
	source := &sliceSource{packets: packetsWithPorts(numPackets)}

	var mu sync.Mutex
	var results []dpimodel.ClassificationResult

	cfg := Config{
		GrainSize:     4,
		NumL7Workers:  3,
		TasksPoolSize: 4,
		V4Rows:        300,
		V6Rows:        300,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := New(ctx, cfg, Deps{
		Source:     source,
		Extractor:  portKeyedExtractor{},
		Hasher:     dissector.FNVFlowHasher{},
		Classifier: dissector.HeuristicClassifier{},
		OnResult: func(r dpimodel.ClassificationResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := p.Join(ctx); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != numPackets {
		t.Fatalf("delivered %d results, want %d", len(results), numPackets)
	}

	seen := make(map[int]bool, numPackets)
	for _, r := range results {
		idx, ok := r.CorrelationData.(int)
		if !ok {
			t.Fatalf("CorrelationData = %v (%T), want the originating packet's int index", r.CorrelationData, r.CorrelationData)
		}
		if seen[idx] {
			t.Fatalf("packet index %d delivered more than once", idx)
		}
		seen[idx] = true
	}
	if len(seen) != numPackets {
		t.Fatalf("correlation handles covered %d distinct packets, want %d", len(seen), numPackets)
	}

	stats := p.Stats()
	if stats.PoolLen != 0 {
		t.Fatalf("pool should be fully drained after Join: len=%d, want 0", stats.PoolLen)
	}
}

func TestPipelineCollapsedModeAlsoDeliversEveryPacket(t *testing.T) {
	const numPackets = 23
	source := &sliceSource{packets: packetsWithPorts(numPackets)}

	var mu sync.Mutex
	count := 0

	cfg := Config{
		GrainSize:     4,
		NumL7Workers:  2,
		TasksPoolSize: 4,
		V4Rows:        200,
		V6Rows:        200,
		Collapsed:     true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := New(ctx, cfg, Deps{
		Source:     source,
		Extractor:  portKeyedExtractor{},
		Hasher:     dissector.FNVFlowHasher{},
		Classifier: dissector.HeuristicClassifier{},
		OnResult: func(dpimodel.ClassificationResult) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Join(ctx); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != numPackets {
		t.Fatalf("delivered %d results, want %d", count, numPackets)
	}
}

// blockingSource replays packets like sliceSource, but pauses the read
// at index blockAt until release is closed, first closing ready so a
// test can observe "exactly blockAt packets have been handed to the
// emitter" before deciding what to do next.
type blockingSource struct {
	mu        sync.Mutex
	packets   []*dpimodel.PacketRecord
	i         int
	blockAt   int
	triggered bool
	ready     chan struct{}
	release   chan struct{}
}

func (s *blockingSource) ReadPacket(ctx context.Context) (*dpimodel.PacketRecord, error) {
	s.mu.Lock()
	if s.i == s.blockAt && !s.triggered {
		s.triggered = true
		s.mu.Unlock()
		close(s.ready)
		<-s.release
		s.mu.Lock()
	}
	if s.i >= len(s.packets) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	p := s.packets[s.i]
	s.i++
	s.mu.Unlock()
	return p, nil
}

// TestPipelineFreezeStopsIntake exercises SPEC_FULL.md §8 scenario S5
// end-to-end: freeze lands between two L34Emitter batches, so every
// batch already in flight when Freeze() is called still drains fully,
// but no further packets are read afterward. With grainSize=4 and
// freeze arriving once 2 batches (8 packets) have already been read, the
// in-flight 3rd batch still completes (12 delivered total) and the 4th
// Step call short-circuits to EOS without reading packet 12, which the
// source would otherwise happily provide — exercising both the "no
// lost packets up to the freeze boundary" and "partial batches still
// flush drop-padded" guarantees through the running pipeline rather
// than only at the L7Emitter unit-test level.
func TestPipelineFreezeStopsIntake(t *testing.T) {
	const grainSize = 4
	const batchesBeforeFreeze = 2
	const blockAt = batchesBeforeFreeze * grainSize
	const wantDelivered = blockAt + grainSize // the in-flight batch still completes

	source := &blockingSource{
		packets: packetsWithPorts(wantDelivered + grainSize), // more are available than should ever be read
		blockAt: blockAt,
		ready:   make(chan struct{}),
		release: make(chan struct{}),
	}

	var mu sync.Mutex
	var results []dpimodel.ClassificationResult

	cfg := Config{
		GrainSize:     grainSize,
		NumL7Workers:  2,
		TasksPoolSize: 4,
		V4Rows:        200,
		V6Rows:        200,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := New(ctx, cfg, Deps{
		Source:     source,
		Extractor:  portKeyedExtractor{},
		Hasher:     dissector.FNVFlowHasher{},
		Classifier: dissector.HeuristicClassifier{},
		OnResult: func(r dpimodel.ClassificationResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	<-source.ready
	p.Freeze()
	close(source.release)

	if err := p.Join(ctx); err != nil {
		t.Fatalf("Join after Freeze returned error: %v", err)
	}

	mu.Lock()
	delivered := len(results)
	mu.Unlock()
	if delivered != wantDelivered {
		t.Fatalf("delivered %d results after freeze, want exactly %d (freeze must not cut short an in-flight batch nor let a new one start)", delivered, wantDelivered)
	}

	stats := p.Stats()
	if stats.PoolLen != 0 {
		t.Fatalf("pool should be fully drained after Join: len=%d, want 0", stats.PoolLen)
	}
}
