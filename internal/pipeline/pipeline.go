// Package pipeline implements the staged DPI dataflow itself: the
// L34Emitter, L34Worker, L7Emitter, L7Worker and L7Collector actors (or,
// in collapsed mode, a CollapsedEmitter standing in for the first three),
// and the Pipeline type that wires them into a running set of goroutines.
//
// The algorithm each actor runs is ported directly from the Peafowl
// mc_dpi worker classes in worker.cpp; the goroutine-per-actor,
// channel-for-handoff orchestration style is adapted from the teacher's
// internal/engine/manager.Manager and internal/probe/persistent.Worker,
// which both drive a fixed set of long-lived worker goroutines from a
// WaitGroup and a shared shutdown signal rather than a thread pool.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/flowtable"
	"NetSpectraDPI/internal/task"
)

// Pipeline is a running DPI dataflow: one set of actors, one task pool,
// two flow tables, wired together and already executing.
type Pipeline struct {
	cfg Config

	pool    *task.Pool
	tableV4 *flowtable.Table
	tableV6 *flowtable.Table

	freeze      atomic.Bool
	terminating atomic.Bool

	collector *L7Collector
	scheduler *VictimTracker

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// Deps bundles the collaborators SPEC_FULL.md §6 treats as opaque:
// where packets come from, how they are parsed and classified, and
// where results and flow-teardown notifications go.
type Deps struct {
	Source     PacketSource
	Extractor  dissector.L34Extractor
	Hasher     dissector.FlowHasher
	Classifier dissector.L7Classifier
	OnResult   ResultCallback
	OnCleanup  dissector.FlowCleanupCallback
}

// rowBoundHasher reduces a FlowHasher's output modulo the table's total
// row count, so flow_hash / rowsPerWorker always names an existing worker.
type rowBoundHasher struct {
	inner          dissector.FlowHasher
	v4Rows, v6Rows uint32
}

func (h rowBoundHasher) HashV4(ft dpimodel.FiveTuple) uint32 { return h.inner.HashV4(ft) % h.v4Rows }
func (h rowBoundHasher) HashV6(ft dpimodel.FiveTuple) uint32 { return h.inner.HashV6(ft) % h.v6Rows }

// New builds a Pipeline from cfg and deps, starts every actor goroutine,
// and returns a Pipeline that is already running. This is the sole
// start-up operation SPEC_FULL.md's lifecycle names: freeze, unfreeze
// and join all act on an already-running pipeline.
func New(ctx context.Context, cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("pipeline: Deps.Source is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("pipeline: Deps.Extractor is required")
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("pipeline: Deps.Hasher is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("pipeline: Deps.Classifier is required")
	}

	allocator := task.Allocator(task.SystemAllocator{})
	if cfg.NUMAAware.Enabled {
		allocator = &task.NUMALocalAllocator{Node: cfg.NUMAAware.Node}
	}
	if cfg.AlignTasks {
		allocator = task.AlignedAllocator{Inner: allocator}
	}

	p := &Pipeline{
		cfg:     cfg,
		pool:    task.NewPool(cfg.TasksPoolSize, cfg.GrainSize, allocator),
		tableV4: flowtable.New(cfg.NumL7Workers, cfg.V4Rows),
		tableV6: flowtable.New(cfg.NumL7Workers, cfg.V6Rows),
		done:    make(chan struct{}),
	}
	p.scheduler = NewVictimTracker(cfg.NumL7Workers)
	hasher := rowBoundHasher{inner: deps.Hasher, v4Rows: cfg.V4Rows, v6Rows: cfg.V6Rows}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	workerChans := make([]chan *task.Batch, cfg.NumL7Workers)
	for i := range workerChans {
		workerChans[i] = make(chan *task.Batch, 4)
	}
	collectorCh := make(chan *task.Batch, cfg.NumL7Workers*4)

	p.collector = NewL7Collector(cfg.cpuID(p.collectorRole()), p.pool, deps.OnResult)

	workers := make([]*L7Worker, cfg.NumL7Workers)
	for w := 0; w < cfg.NumL7Workers; w++ {
		workers[w] = NewL7Worker(cfg.cpuID(p.workerRole(w)), w, p.tableV4, p.tableV6, deps.Classifier, deps.OnCleanup)
	}

	var workersWg sync.WaitGroup
	workersWg.Add(cfg.NumL7Workers)
	for w := 0; w < cfg.NumL7Workers; w++ {
		go p.runL7Worker(runCtx, workers[w], workerChans[w], collectorCh, &workersWg)
	}
	go func() {
		workersWg.Wait()
		close(collectorCh)
	}()

	p.wg.Add(1)
	go p.runL7Collector(collectorCh)

	if cfg.Collapsed {
		l34Emit := NewL34Emitter(cfg.cpuID(0), deps.Source, p.pool, &p.freeze, &p.terminating)
		l34Work := NewL34Worker(-1, deps.Extractor, hasher, cfg.V4Rows/uint32(cfg.NumL7Workers), cfg.V6Rows/uint32(cfg.NumL7Workers))
		l7Emit := NewL7Emitter(-1, cfg.GrainSize, cfg.NumL7Workers, workerChans, p.scheduler)
		collapsed := NewCollapsedEmitter(cfg.cpuID(0), l34Emit, l34Work, l7Emit)

		p.wg.Add(1)
		go p.runCollapsed(runCtx, collapsed, workerChans)
	} else {
		l34in := make(chan *task.Batch, 4)
		l34out := make(chan *task.Batch, 4)

		l34Emit := NewL34Emitter(cfg.cpuID(0), deps.Source, p.pool, &p.freeze, &p.terminating)
		l34Work := NewL34Worker(cfg.cpuID(1), deps.Extractor, hasher, cfg.V4Rows/uint32(cfg.NumL7Workers), cfg.V6Rows/uint32(cfg.NumL7Workers))
		l7Emit := NewL7Emitter(cfg.cpuID(2), cfg.GrainSize, cfg.NumL7Workers, workerChans, p.scheduler)

		p.wg.Add(3)
		go p.runL34Emitter(runCtx, l34Emit, l34in)
		go p.runL34Worker(l34Work, l34in, l34out)
		go p.runL7Emitter(runCtx, l7Emit, l34out, workerChans)
	}

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return p, nil
}

// collectorRole and workerRole resolve a config cpu_ids index depending
// on whether the pipeline is collapsed (see Config's doc comment for the
// two layouts).
func (p *Pipeline) collectorRole() int {
	if p.cfg.Collapsed {
		return 1 + p.cfg.NumL7Workers
	}
	return 3 + p.cfg.NumL7Workers
}

func (p *Pipeline) workerRole(w int) int {
	if p.cfg.Collapsed {
		return 1 + w
	}
	return 3 + w
}

func (p *Pipeline) runL34Emitter(ctx context.Context, e *L34Emitter, out chan<- *task.Batch) {
	defer p.wg.Done()
	if err := e.Init(); err != nil {
		log.Printf("pipeline: L34Emitter affinity setup failed: %v", err)
	}
	for {
		batch, sig, err := e.Step(ctx)
		if err != nil {
			log.Printf("pipeline: L34Emitter step error: %v", err)
			continue
		}
		if batch != nil {
			select {
			case out <- batch:
			case <-ctx.Done():
				close(out)
				return
			}
		}
		if sig == SignalEOS {
			close(out)
			return
		}
	}
}

func (p *Pipeline) runL34Worker(w *L34Worker, in <-chan *task.Batch, out chan<- *task.Batch) {
	defer p.wg.Done()
	if err := w.Init(); err != nil {
		log.Printf("pipeline: L34Worker affinity setup failed: %v", err)
	}
	for batch := range in {
		out <- w.Step(batch)
	}
	close(out)
}

func (p *Pipeline) runL7Emitter(ctx context.Context, e *L7Emitter, in <-chan *task.Batch, workerChans []chan *task.Batch) {
	defer p.wg.Done()
	if err := e.Init(); err != nil {
		log.Printf("pipeline: L7Emitter affinity setup failed: %v", err)
	}
	for batch := range in {
		if err := e.Step(ctx, batch); err != nil {
			log.Printf("pipeline: L7Emitter step error: %v", err)
		}
	}
	if err := e.FlushPartials(ctx); err != nil {
		log.Printf("pipeline: L7Emitter flush error: %v", err)
	}
	for _, ch := range workerChans {
		close(ch)
	}
}

func (p *Pipeline) runCollapsed(ctx context.Context, c *CollapsedEmitter, workerChans []chan *task.Batch) {
	defer p.wg.Done()
	if err := c.Init(); err != nil {
		log.Printf("pipeline: CollapsedEmitter affinity setup failed: %v", err)
	}
	for {
		sig, err := c.Step(ctx)
		if err != nil {
			log.Printf("pipeline: CollapsedEmitter step error: %v", err)
			continue
		}
		if sig == SignalEOS {
			if err := c.FlushPartials(ctx); err != nil {
				log.Printf("pipeline: CollapsedEmitter flush error: %v", err)
			}
			for _, ch := range workerChans {
				close(ch)
			}
			return
		}
	}
}

func (p *Pipeline) runL7Worker(ctx context.Context, w *L7Worker, in <-chan *task.Batch, out chan<- *task.Batch, wg *sync.WaitGroup) {
	defer wg.Done()
	if err := w.Init(); err != nil {
		log.Printf("pipeline: L7Worker[%d] affinity setup failed: %v", w.workerID, err)
	}
	for batch := range in {
		select {
		case out <- w.Step(batch):
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) runL7Collector(in <-chan *task.Batch) {
	defer p.wg.Done()
	if err := p.collector.Init(); err != nil {
		log.Printf("pipeline: L7Collector affinity setup failed: %v", err)
	}
	for batch := range in {
		p.collector.Step(batch)
	}
	p.collector.Drain()
}

// Freeze stops the L34Emitter from acquiring further batches; already
// in-flight batches still drain through the rest of the pipeline.
// SPEC_FULL.md §4.2/§8 scenario S5.
func (p *Pipeline) Freeze() { p.freeze.Store(true) }

// Unfreeze clears the freeze flag. It has an effect only before the
// L34Emitter's next Step observes the flag; once the emitter has emitted
// end-of-stream, the pipeline shuts down regardless.
func (p *Pipeline) Unfreeze() { p.freeze.Store(false) }

// Terminating reports whether the source has reached end-of-stream.
func (p *Pipeline) Terminating() bool { return p.terminating.Load() }

// Stats is a point-in-time snapshot for the control plane's introspection
// surface.
type Stats struct {
	PoolLen      int
	PoolCapacity int
	FlowsV4      int
	FlowsV6      int
	VictimHints  []uint64
}

// Stats reports current pool occupancy, per-table flow counts and
// scheduler victim hints.
func (p *Pipeline) Stats() Stats {
	flowsV4, flowsV6 := 0, 0
	for w := 0; w < p.cfg.NumL7Workers; w++ {
		flowsV4 += p.tableV4.Shard(w).Len()
		flowsV6 += p.tableV6.Shard(w).Len()
	}
	hints := make([]uint64, p.cfg.NumL7Workers)
	for w := range hints {
		hints[w] = p.scheduler.Hints(w)
	}
	return Stats{
		PoolLen:      p.pool.Len(),
		PoolCapacity: p.pool.Capacity(),
		FlowsV4:      flowsV4,
		FlowsV6:      flowsV6,
		VictimHints:  hints,
	}
}

// Join blocks until every actor goroutine has exited — the source has
// reached end-of-stream (or ctx was canceled) and every in-flight batch
// has reached the collector. SPEC_FULL.md §8 scenario S5: pool fully
// drained becomes observable once Join returns.
func (p *Pipeline) Join(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.cancel()
		<-p.done
		return ctx.Err()
	}
}
