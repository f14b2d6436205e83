package task

import "testing"

func TestBatchReinterpretation(t *testing.T) {
	b := New(4)
	if b.Tag != StageL34In {
		t.Fatalf("New batch should start tagged StageL34In, got %v", b.Tag)
	}

	b.SetL34In(0, &L34InSlot{CorrelationData: "pkt0"})
	if got := b.L34In(0).CorrelationData; got != "pkt0" {
		t.Fatalf("L34In(0).CorrelationData = %v, want pkt0", got)
	}

	b.SetL34Out(0, &L34OutSlot{DestinationWorker: 3})
	if b.Tag != StageL34Out {
		t.Fatalf("SetL34Out should retag the batch, got %v", b.Tag)
	}
	if got := b.L34Out(0).DestinationWorker; got != 3 {
		t.Fatalf("L34Out(0).DestinationWorker = %d, want 3", got)
	}

	b.SetL7Out(0, &L7OutSlot{})
	if b.Tag != StageL7Out {
		t.Fatalf("SetL7Out should retag the batch, got %v", b.Tag)
	}
}

func TestBatchWrongInterpretationPanics(t *testing.T) {
	b := New(1)
	b.SetL34In(0, &L34InSlot{})

	defer func() {
		if recover() == nil {
			t.Fatal("L34Out on an L34-input slot should panic")
		}
	}()
	b.L34Out(0)
}

func TestBatchReset(t *testing.T) {
	b := New(2)
	b.SetL7Out(0, &L7OutSlot{})
	b.SetL7Out(1, &L7OutSlot{})

	b.Reset()
	if b.Tag != StageL34In {
		t.Fatalf("Reset should retag to StageL34In, got %v", b.Tag)
	}
	for i := 0; i < b.GrainSize(); i++ {
		if b.CopySlotData(i) != nil {
			t.Fatalf("Reset should clear slot %d", i)
		}
	}
}
