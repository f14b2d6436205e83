package flowtable

import (
	"net"
	"testing"

	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
)

func ft(src string, port uint16) dpimodel.FiveTuple {
	return dpimodel.FiveTuple{
		SrcIP:    net.ParseIP(src),
		DstIP:    net.ParseIP("10.0.0.1"),
		SrcPort:  port,
		DstPort:  443,
		Protocol: dpimodel.ProtoTCP,
	}
}

func TestTableWorkerForIsMonotone(t *testing.T) {
	tbl := New(4, 400)
	prev := uint32(0)
	for h := uint32(0); h < 400; h += 7 {
		w := tbl.WorkerFor(h)
		if w < prev {
			t.Fatalf("WorkerFor(%d) = %d, went backwards from %d", h, w, prev)
		}
		prev = w
	}
	if got := tbl.WorkerFor(0); got != 0 {
		t.Fatalf("WorkerFor(0) = %d, want 0", got)
	}
	if got := tbl.WorkerFor(399); got != 3 {
		t.Fatalf("WorkerFor(399) = %d, want 3", got)
	}
}

func TestTableNewPanicsOnIndivisibleRows(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New should panic when totalRows is not divisible by numWorkers")
		}
	}()
	New(3, 100)
}

func TestShardFindOrCreate(t *testing.T) {
	s := newShard(2)
	newState := func() dissector.FlowState { return &struct{ n int }{} }

	row1, ok := s.FindOrCreate(ft("1.2.3.4", 1000), newState)
	if !ok {
		t.Fatal("first insert should succeed")
	}
	row1Again, ok := s.FindOrCreate(ft("1.2.3.4", 1000), newState)
	if !ok || row1Again != row1 {
		t.Fatal("FindOrCreate should return the same row for the same five-tuple")
	}

	if _, ok := s.FindOrCreate(ft("1.2.3.5", 1001), newState); !ok {
		t.Fatal("second distinct insert should succeed under maxFlows=2")
	}
	if _, ok := s.FindOrCreate(ft("1.2.3.6", 1002), newState); ok {
		t.Fatal("third distinct insert should fail once the shard is full")
	}
}

func TestShardDelete(t *testing.T) {
	s := newShard(4)
	newState := func() dissector.FlowState { return &struct{}{} }
	tuple := ft("1.2.3.4", 1000)
	s.FindOrCreate(tuple, newState)

	if _, ok := s.Delete(tuple); !ok {
		t.Fatal("Delete should find the row just inserted")
	}
	if _, ok := s.Find(tuple); ok {
		t.Fatal("row should be gone after Delete")
	}
	if _, ok := s.Delete(tuple); ok {
		t.Fatal("deleting twice should report not-found the second time")
	}
}
