// Command dpi-engine wires a packet source, the dissection pipeline, a
// result sink and the control-plane surface together and runs them until
// the source is exhausted or a termination signal arrives. Its
// structure — load config, construct collaborators, start servers in
// goroutines, block on a signal channel, then shut down with a bounded
// context — follows the teacher's cmd/ns-api/main.go.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetSpectraDPI/internal/config"
	"NetSpectraDPI/internal/control"
	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/pipeline"
	"NetSpectraDPI/internal/sink/clickhouse"
	"NetSpectraDPI/internal/source/natssrc"
	pcapsrc "NetSpectraDPI/internal/source/pcap"

	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("dpi-engine: failed to load configuration: %v", err)
	}

	source, closeSource, err := buildSource(cfg.Source)
	if err != nil {
		log.Fatalf("dpi-engine: failed to build packet source: %v", err)
	}
	defer closeSource()

	onResult, closeSink, err := buildSink(cfg.Sink)
	if err != nil {
		log.Fatalf("dpi-engine: failed to build result sink: %v", err)
	}
	defer closeSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := pipeline.New(ctx, cfg.Pipeline.ToPipelineConfig(), pipeline.Deps{
		Source:     source,
		Extractor:  dissector.GopacketExtractor{},
		Hasher:     dissector.FNVFlowHasher{},
		Classifier: dissector.HeuristicClassifier{TerminationAfter: cfg.Classifier.TerminationAfter},
		OnResult:   onResult,
	})
	if err != nil {
		log.Fatalf("dpi-engine: failed to start pipeline: %v", err)
	}

	ctrl := &control.Controller{Pipeline: p}
	httpServer := startHTTPServer(cfg.Control.HTTPListenAddr, ctrl)
	grpcServer, grpcListener := startGRPCServer(cfg.Control.GRPCListenAddr, ctrl)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- p.Join(ctx) }()

	select {
	case <-quit:
		log.Println("dpi-engine: shutdown signal received")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Printf("dpi-engine: pipeline stopped with error: %v", err)
		} else {
			log.Println("dpi-engine: source exhausted, pipeline drained")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("dpi-engine: http server shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
	_ = grpcListener
}

func buildSource(cfg config.SourceConfig) (pipeline.PacketSource, func(), error) {
	switch cfg.Type {
	case "pcap-offline":
		r, err := pcapsrc.OpenOffline(cfg.PcapFile)
		if err != nil {
			return nil, func() {}, err
		}
		return r, r.Close, nil
	case "pcap-live":
		r, err := pcapsrc.OpenLive(cfg.PcapIface, cfg.PcapSnapLen, cfg.PcapPromisc, 0)
		if err != nil {
			return nil, func() {}, err
		}
		return r, r.Close, nil
	case "nats":
		s, err := natssrc.Connect(cfg.NATSURL, cfg.NATSSubject, cfg.NATSQueueLen)
		if err != nil {
			return nil, func() {}, err
		}
		return s, s.Close, nil
	default:
		return nil, func() {}, errUnknownSourceType(cfg.Type)
	}
}

func buildSink(cfg config.SinkConfig) (pipeline.ResultCallback, func(), error) {
	switch cfg.Type {
	case "clickhouse":
		w, err := clickhouse.New(clickhouse.Config{
			Host:          cfg.ClickHouse.Host,
			Port:          cfg.ClickHouse.Port,
			Database:      cfg.ClickHouse.Database,
			Username:      cfg.ClickHouse.Username,
			Password:      cfg.ClickHouse.Password,
			FlushSize:     cfg.ClickHouse.FlushSize,
			FlushInterval: cfg.ClickHouse.FlushInterval,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return w.OnResult, w.Close, nil
	case "stdout":
		return func(r dpimodel.ClassificationResult) {
			log.Printf("dpi-engine: result proto=%s status=%v", r.AppProtocol, r.Status)
		}, func() {}, nil
	default:
		return nil, func() {}, errUnknownSinkType(cfg.Type)
	}
}

func startHTTPServer(addr string, ctrl *control.Controller) *http.Server {
	server := &http.Server{Addr: addr, Handler: ctrl.NewRouter()}
	go func() {
		log.Printf("dpi-engine: control HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("dpi-engine: control HTTP server error: %v", err)
		}
	}()
	return server
}

func startGRPCServer(addr string, ctrl *control.Controller) (*grpc.Server, net.Listener) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("dpi-engine: failed to listen for grpc on %s: %v", addr, err)
	}
	s := grpc.NewServer()
	ctrl.RegisterGRPC(s)
	go func() {
		log.Printf("dpi-engine: control grpc server listening on %s", addr)
		if err := s.Serve(lis); err != nil {
			log.Printf("dpi-engine: control grpc server error: %v", err)
		}
	}()
	return s, lis
}

type errUnknownSourceType string

func (e errUnknownSourceType) Error() string { return "unknown source type: " + string(e) }

type errUnknownSinkType string

func (e errUnknownSinkType) Error() string { return "unknown sink type: " + string(e) }
