package pipeline

import (
	"context"
	"runtime"

	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/task"
)

// L7Emitter re-batches L34-output slots by destination worker, grounded
// on worker.cpp's dpi_L7_emitter::svc. Slots for the same worker
// accumulate in that worker's partiallyFilled accumulator until a full
// grain is reached, at which point a spare batch is popped off
// waitingTasks, filled from the accumulator plus the just-arrived slot,
// and sent to that worker's channel.
//
// waitingTasks starts pre-populated with numWorkers spare batches — the
// same number the source's constructor allocates — and grows only by
// Step pushing each drained inbound batch onto it (batches that reach
// the L7Collector go back to the task pool, not here). Popping from an empty stack is an invariant
// violation (SPEC_FULL.md's B1: spare batches are conserved), so it
// panics rather than silently allocating more.
type L7Emitter struct {
	cpuID       int
	grainSize   int
	numWorkers  int
	partial     []*task.Batch
	partialSize []int
	waiting     []*task.Batch
	outCh       []chan *task.Batch
	scheduler   Scheduler
}

func NewL7Emitter(cpuID, grainSize, numWorkers int, outCh []chan *task.Batch, scheduler Scheduler) *L7Emitter {
	partial := make([]*task.Batch, numWorkers)
	for i := range partial {
		partial[i] = task.New(grainSize)
		partial[i].Tag = task.StageL34Out
	}
	waiting := make([]*task.Batch, 0, numWorkers*2)
	for i := 0; i < numWorkers; i++ {
		b := task.New(grainSize)
		b.Tag = task.StageL34Out
		waiting = append(waiting, b)
	}
	return &L7Emitter{
		cpuID:       cpuID,
		grainSize:   grainSize,
		numWorkers:  numWorkers,
		partial:     partial,
		partialSize: make([]int, numWorkers),
		waiting:     waiting,
		outCh:       outCh,
		scheduler:   scheduler,
	}
}

func (e *L7Emitter) Init() error {
	runtime.LockOSThread()
	return pinToCPU(e.cpuID)
}

func (e *L7Emitter) CPUID() int { return e.cpuID }

func (e *L7Emitter) popWaiting() *task.Batch {
	n := len(e.waiting)
	if n == 0 {
		panic("pipeline: L7Emitter waitingTasks exhausted, spare-batch conservation violated")
	}
	b := e.waiting[n-1]
	e.waiting = e.waiting[:n-1]
	return b
}

// Recycle returns a drained batch to the waiting-tasks stack so a future
// full accumulator can be dispatched from it. Step calls it with each
// drained inbound batch.
func (e *L7Emitter) Recycle(b *task.Batch) {
	e.waiting = append(e.waiting, b)
}

// Step consumes one L34-output batch, distributing its slots across the
// per-worker accumulators and dispatching any accumulator that fills up.
// The batch itself is pushed onto waitingTasks once drained — the
// source's `waiting_tasks[waiting_tasks_size++] = in` — since its
// underlying storage becomes a spare for a future dispatch. An inbound
// batch with fewer than grainSize slots cannot hold a full dispatch and
// is not kept.
func (e *L7Emitter) Step(ctx context.Context, in *task.Batch) error {
	grain := in.GrainSize()
	for i := 0; i < grain; i++ {
		slot := in.L34Out(i)
		d := int(slot.DestinationWorker)
		if slot.Parse.Status == dpimodel.StatusIPFragment || slot.Parse.Status.IsError() || slot.Parse.Status == dpimodel.StatusTransportNotSupported || slot.Parse.Status == dpimodel.StatusDrop {
			d = 0 // no flow lookup needed; route arbitrarily so it still reaches a collector.
		}
		if err := e.dispatch(ctx, d, slot); err != nil {
			return err
		}
	}
	if grain == e.grainSize {
		e.Recycle(in)
	}
	return nil
}

func (e *L7Emitter) dispatch(ctx context.Context, d int, slot *task.L34OutSlot) error {
	pfs := e.partialSize[d]
	if pfs+1 == e.grainSize {
		out := e.popWaiting()
		for j := 0; j < pfs; j++ {
			out.SetL34Out(j, e.partial[d].L34Out(j))
		}
		out.SetL34Out(pfs, slot)
		if e.scheduler != nil {
			e.scheduler.SetVictim(d)
		}
		select {
		case e.outCh[d] <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
		e.partialSize[d] = 0
		return nil
	}
	e.partial[d].SetL34Out(pfs, slot)
	e.partialSize[d] = pfs + 1
	return nil
}

// FlushPartials dispatches every worker's non-empty accumulator, padding
// the remainder with StatusDrop slots. Called once, at shutdown, after
// the upstream L34Worker has signaled end-of-stream (SPEC_FULL.md §4.4's
// shutdown-padding behavior, and property 4's stated exception).
func (e *L7Emitter) FlushPartials(ctx context.Context) error {
	for d := 0; d < e.numWorkers; d++ {
		pfs := e.partialSize[d]
		if pfs == 0 {
			continue
		}
		out := e.popWaiting()
		for j := 0; j < pfs; j++ {
			out.SetL34Out(j, e.partial[d].L34Out(j))
		}
		for j := pfs; j < e.grainSize; j++ {
			out.SetL34Out(j, &task.L34OutSlot{Parse: dpimodel.ParseResult{Status: dpimodel.StatusDrop}})
		}
		select {
		case e.outCh[d] <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
		e.partialSize[d] = 0
	}
	return nil
}
