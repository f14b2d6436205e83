package task

import "sync/atomic"

// Pool is a bounded single-producer/single-consumer ring buffer of
// pre-allocated batches, matching SPEC_FULL.md §4.1: L7Collector is the
// sole pusher (recycle side), L34Emitter is the sole popper (acquire
// side). The single-writer-per-index discipline this implies means no
// locking is required — only the head/tail atomics that make the two
// goroutines' views of occupancy consistent.
type Pool struct {
	buf       []*Batch
	capacity  uint64
	head      atomic.Uint64 // next index to pop; owned by the consumer
	tail      atomic.Uint64 // next index to push; owned by the producer
	allocator Allocator
	grainSize int
}

// NewPool creates a pool of the given capacity and pre-fills it with
// freshly allocated batches, mirroring the source's svc_init loop that
// fills the tasks_pool before the pipeline starts (worker.cpp,
// dpi_L3_L4_emitter::svc_init).
func NewPool(capacity int, grainSize int, allocator Allocator) *Pool {
	if allocator == nil {
		allocator = SystemAllocator{}
	}
	p := &Pool{
		buf:       make([]*Batch, capacity),
		capacity:  uint64(capacity),
		allocator: allocator,
		grainSize: grainSize,
	}
	for i := 0; i < capacity; i++ {
		p.buf[i] = allocator.Allocate(grainSize)
	}
	p.tail.Store(uint64(capacity))
	return p
}

// TryPop removes and returns a batch if the pool is non-empty. Called
// only by the consumer goroutine (L34Emitter).
func (p *Pool) TryPop() (*Batch, bool) {
	head := p.head.Load()
	tail := p.tail.Load()
	if head == tail {
		return nil, false
	}
	b := p.buf[head%p.capacity]
	p.buf[head%p.capacity] = nil
	p.head.Store(head + 1)
	return b, true
}

// TryPush returns a batch to the pool if it is not full. Called only by
// the producer goroutine (L7Collector).
func (p *Pool) TryPush(b *Batch) bool {
	tail := p.tail.Load()
	head := p.head.Load()
	if tail-head >= p.capacity {
		return false
	}
	b.Reset()
	p.buf[tail%p.capacity] = b
	p.tail.Store(tail + 1)
	return true
}

// Len reports the number of batches currently held by the pool. Used by
// the control plane's stats surface and by tests asserting batch
// conservation (SPEC_FULL.md §8, property 3).
func (p *Pool) Len() int {
	return int(p.tail.Load() - p.head.Load())
}

// Capacity returns the pool's fixed capacity.
func (p *Pool) Capacity() int { return int(p.capacity) }

// Allocate produces a brand-new batch via the pool's allocator, for use
// when the pool itself is empty (SPEC_FULL.md §4.1: "on empty, the
// emitter allocates").
func (p *Pool) Allocate() *Batch { return p.allocator.Allocate(p.grainSize) }

// DrainAndFree empties the pool. In Go there is nothing to manually free
// (the garbage collector reclaims the batches once dereferenced), but
// draining still matters: it is the observable point at which "pool
// fully drained" (SPEC_FULL.md §8, scenario S5) becomes true.
func (p *Pool) DrainAndFree() {
	for {
		if _, ok := p.TryPop(); !ok {
			return
		}
	}
}
