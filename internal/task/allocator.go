package task

import "log"

// Allocator models where a freshly allocated Batch's backing storage
// should come from, mirroring SPEC_FULL.md §5's NUMA-affinity design
// note: an allocator trait the task pool draws from.
type Allocator interface {
	Allocate(grainSize int) *Batch
}

// SystemAllocator allocates batches from the regular Go heap. It is the
// fallback every other allocator degrades to when its preferred
// placement is unavailable.
type SystemAllocator struct{}

func (SystemAllocator) Allocate(grainSize int) *Batch { return New(grainSize) }

// NUMALocalAllocator records the NUMA node task storage should prefer.
// Go's garbage-collected heap offers no portable, unprivileged API to
// pin a slice's backing array to a specific NUMA node (unlike the
// source's numa_alloc_onnode), so this allocator is honestly a
// best-effort placement hint: it logs the requested node once and then
// falls back to system allocation, exactly the behavior SPEC_FULL.md §4.1
// prescribes for "if unavailable, they use cache-line-aligned general
// allocation."
type NUMALocalAllocator struct {
	Node int

	warned bool
}

func (a *NUMALocalAllocator) Allocate(grainSize int) *Batch {
	if !a.warned {
		log.Printf("task: NUMA-local allocation requested for node %d; falling back to system allocation (no portable Go API for pinned placement)", a.Node)
		a.warned = true
	}
	return New(grainSize)
}

// AlignedAllocator wraps another Allocator and marks every batch it hands
// out as cache-line aligned, mirroring SPEC_FULL.md §6's align_tasks
// switch. Go gives no portable way to force a slice's backing array onto
// a cache-line boundary (the reason Batch already carries an unconditional
// trailing padding field), so "on" is realized the same honest way
// NUMALocalAllocator realizes numa_aware: the padding is already there,
// and this allocator's job is to make align_tasks observable by stamping
// Batch.Aligned, rather than silently ignoring the switch.
type AlignedAllocator struct {
	Inner Allocator
}

func (a AlignedAllocator) Allocate(grainSize int) *Batch {
	inner := a.Inner
	if inner == nil {
		inner = SystemAllocator{}
	}
	b := inner.Allocate(grainSize)
	b.Aligned = true
	return b
}
