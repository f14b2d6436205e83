package task

import "testing"

func TestPoolPrefillsToCapacity(t *testing.T) {
	p := NewPool(4, 8, nil)
	if p.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", p.Len())
	}
	if p.Capacity() != 4 {
		t.Fatalf("Capacity() = %d, want 4", p.Capacity())
	}
}

func TestPoolPopPushConservation(t *testing.T) {
	p := NewPool(2, 4, nil)

	b1, ok := p.TryPop()
	if !ok {
		t.Fatal("TryPop should succeed on a non-empty pool")
	}
	b2, ok := p.TryPop()
	if !ok {
		t.Fatal("TryPop should succeed a second time")
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after draining", p.Len())
	}
	if _, ok := p.TryPop(); ok {
		t.Fatal("TryPop should fail on an empty pool")
	}

	if !p.TryPush(b1) {
		t.Fatal("TryPush should succeed while under capacity")
	}
	if !p.TryPush(b2) {
		t.Fatal("TryPush should succeed up to capacity")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after returning both batches", p.Len())
	}
}

func TestPoolTryPushRejectsOverCapacity(t *testing.T) {
	p := NewPool(1, 4, nil)
	extra := New(4)
	if p.TryPush(extra) {
		t.Fatal("TryPush should reject a batch once the pool is at capacity")
	}
}

func TestPoolAllocateOnEmpty(t *testing.T) {
	p := NewPool(1, 4, nil)
	if _, ok := p.TryPop(); !ok {
		t.Fatal("expected one batch available")
	}
	b := p.Allocate()
	if b.GrainSize() != 4 {
		t.Fatalf("Allocate() grain size = %d, want 4", b.GrainSize())
	}
}

func TestPoolDrainAndFree(t *testing.T) {
	p := NewPool(3, 4, nil)
	p.DrainAndFree()
	if p.Len() != 0 {
		t.Fatalf("Len() = %d after DrainAndFree, want 0", p.Len())
	}
}
