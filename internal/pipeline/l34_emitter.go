package pipeline

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"

	"NetSpectraDPI/internal/task"
)

// L34Emitter is the pipeline's source stage, grounded on worker.cpp's
// dpi_L3_L4_emitter::svc: each Step call acquires one batch (recycled
// from the pool if available, freshly allocated otherwise) and fills it
// with up to GrainSize packets read from the PacketSource.
type L34Emitter struct {
	cpuID       int
	source      PacketSource
	pool        *task.Pool
	freeze      *atomic.Bool
	terminating *atomic.Bool
}

// NewL34Emitter builds an L34Emitter pinned to cpuID (-1 leaves it
// unpinned). freeze and terminating are shared with the owning Pipeline
// so Freeze()/Unfreeze() and shutdown bookkeeping are visible here.
func NewL34Emitter(cpuID int, source PacketSource, pool *task.Pool, freeze, terminating *atomic.Bool) *L34Emitter {
	return &L34Emitter{cpuID: cpuID, source: source, pool: pool, freeze: freeze, terminating: terminating}
}

// Init locks the calling goroutine to its OS thread and pins it,
// mirroring the source's per-thread affinity setup. Must be called once,
// from the goroutine that will drive Step.
func (e *L34Emitter) Init() error {
	runtime.LockOSThread()
	return pinToCPU(e.cpuID)
}

func (e *L34Emitter) CPUID() int { return e.cpuID }

// Step implements SPEC_FULL.md §4.2: on freeze, emit EOS without
// consuming from the pool or the source. Otherwise acquire a batch and
// fill it. If the source reaches end-of-stream partway through filling,
// the already-read packets are kept (not discarded, unlike the
// source's literal mid-batch drop — see DESIGN.md's Open Question
// decision on this point) and the remaining slots are padded with
// dpimodel.StatusDrop so downstream stages recognize them as padding
// rather than real packets.
func (e *L34Emitter) Step(ctx context.Context) (*task.Batch, Signal, error) {
	if e.freeze.Load() {
		return nil, SignalEOS, nil
	}

	batch, ok := e.pool.TryPop()
	if !ok {
		batch = e.pool.Allocate()
	}
	batch.Reset()

	for i := 0; i < batch.GrainSize(); i++ {
		pkt, err := e.source.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				e.terminating.Store(true)
				for j := i; j < batch.GrainSize(); j++ {
					batch.SetL34In(j, &task.L34InSlot{})
				}
				return batch, SignalEOS, nil
			}
			return nil, SignalContinue, err
		}
		batch.SetL34In(i, &task.L34InSlot{Packet: pkt, CorrelationData: pkt.CorrelationData})
	}
	return batch, SignalContinue, nil
}

// droppedSlot reports whether an L34InSlot is end-of-stream padding
// rather than a real packet (it has no PacketRecord attached).
func droppedSlot(s *task.L34InSlot) bool { return s.Packet == nil }
