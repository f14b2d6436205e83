package pipeline

import (
	"context"
	"testing"

	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/task"
)

func makeL34OutBatch(grain int, dest []uint32) *task.Batch {
	b := task.New(grain)
	for i, d := range dest {
		b.SetL34Out(i, &task.L34OutSlot{DestinationWorker: d, Parse: dpimodel.ParseResult{Status: dpimodel.StatusOK}})
	}
	return b
}

func TestL7EmitterDispatchesFullBatchToOwningWorker(t *testing.T) {
	const grain = 2
	const numWorkers = 2
	outCh := make([]chan *task.Batch, numWorkers)
	for i := range outCh {
		outCh[i] = make(chan *task.Batch, 4)
	}
	e := NewL7Emitter(-1, grain, numWorkers, outCh, nil)

	in := makeL34OutBatch(grain, []uint32{1, 1})
	if err := e.Step(context.Background(), in); err != nil {
		t.Fatalf("Step returned error: %v", err)
	}

	select {
	case got := <-outCh[1]:
		if got.GrainSize() != grain {
			t.Fatalf("dispatched batch grain size = %d, want %d", got.GrainSize(), grain)
		}
	default:
		t.Fatal("expected a full batch dispatched to worker 1")
	}
	select {
	case <-outCh[0]:
		t.Fatal("worker 0 should not have received anything")
	default:
	}
}

func TestL7EmitterAccumulatesAcrossSteps(t *testing.T) {
	const grain = 2
	const numWorkers = 1
	outCh := []chan *task.Batch{make(chan *task.Batch, 4)}
	e := NewL7Emitter(-1, grain, numWorkers, outCh, nil)

	first := makeL34OutBatch(grain, []uint32{0}) // only fills slot 0
	first.Items = first.Items[:1]
	if err := e.Step(context.Background(), first); err != nil {
		t.Fatalf("Step 1 error: %v", err)
	}
	select {
	case <-outCh[0]:
		t.Fatal("should not dispatch yet, accumulator not full")
	default:
	}

	second := makeL34OutBatch(grain, []uint32{0})
	second.Items = second.Items[:1]
	if err := e.Step(context.Background(), second); err != nil {
		t.Fatalf("Step 2 error: %v", err)
	}
	select {
	case got := <-outCh[0]:
		if got.GrainSize() != grain {
			t.Fatalf("dispatched grain size = %d, want %d", got.GrainSize(), grain)
		}
	default:
		t.Fatal("expected accumulator to flush to a full batch on the second slot")
	}
}

func TestL7EmitterFlushPartialsPadsWithDrop(t *testing.T) {
	const grain = 4
	const numWorkers = 1
	outCh := []chan *task.Batch{make(chan *task.Batch, 4)}
	e := NewL7Emitter(-1, grain, numWorkers, outCh, nil)

	partial := makeL34OutBatch(grain, []uint32{0})
	partial.Items = partial.Items[:1]
	if err := e.Step(context.Background(), partial); err != nil {
		t.Fatalf("Step error: %v", err)
	}

	if err := e.FlushPartials(context.Background()); err != nil {
		t.Fatalf("FlushPartials error: %v", err)
	}

	select {
	case got := <-outCh[0]:
		if got.GrainSize() != grain {
			t.Fatalf("flushed batch grain size = %d, want %d", got.GrainSize(), grain)
		}
		if got.L34Out(0).Parse.Status != dpimodel.StatusOK {
			t.Fatalf("slot 0 should carry the real accumulated slot, got status %v", got.L34Out(0).Parse.Status)
		}
		for i := 1; i < grain; i++ {
			if got.L34Out(i).Parse.Status != dpimodel.StatusDrop {
				t.Fatalf("slot %d should be padded with StatusDrop, got %v", i, got.L34Out(i).Parse.Status)
			}
		}
	default:
		t.Fatal("expected FlushPartials to dispatch the padded batch")
	}
}

func TestL7EmitterPanicsWhenWaitingTasksExhausted(t *testing.T) {
	const grain = 1
	const numWorkers = 1
	// The channel is buffered, so a dispatch would not block; the test
	// empties waitingTasks directly to exercise the panic path
	// deterministically.
	outCh := []chan *task.Batch{make(chan *task.Batch, 8)}
	e := NewL7Emitter(-1, grain, numWorkers, outCh, nil)
	e.waiting = nil

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when waitingTasks is exhausted")
		}
	}()
	in := makeL34OutBatch(grain, []uint32{0})
	e.Step(context.Background(), in)
}
