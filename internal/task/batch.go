// Package task implements the pipeline's unit of inter-actor
// communication: a fixed-grain batch of packet slots, and the bounded
// pool that recycles batches between the L34Emitter and the L7Collector.
//
// The C++ original reuses one block of memory as a union across three
// stage-specific layouts. Go has no unsafe unions on the data path here,
// so a Batch instead carries a Stage tag and a slice of Slot, where each
// Slot's Data field is reinterpreted — assigned a new concrete type —
// as the batch moves from stage to stage. Every stage transform copies
// the slots it is about to overwrite into an on-stack scratch array
// first, exactly mirroring the source's memcpy-into-`in`-before-write
// discipline (see pipeline/*_worker.go).
package task

import "NetSpectraDPI/internal/dpimodel"

// Stage tags which of the three layouts a Batch's slots currently hold.
type Stage uint8

const (
	StageL34In Stage = iota
	StageL34Out
	StageL7Out
)

func (s Stage) String() string {
	switch s {
	case StageL34In:
		return "L34In"
	case StageL34Out:
		return "L34Out"
	case StageL7Out:
		return "L7Out"
	default:
		return "unknown"
	}
}

// L34InSlot is one packet as read from the source, awaiting L3/L4 parsing.
type L34InSlot struct {
	Packet          *dpimodel.PacketRecord
	CorrelationData any
}

// L34OutSlot is the parsed outcome of one packet plus its routing decision.
type L34OutSlot struct {
	Parse             dpimodel.ParseResult
	DestinationWorker uint32
	CorrelationData   any
}

// L7OutSlot is the final classification outcome for one packet.
type L7OutSlot struct {
	Result dpimodel.ClassificationResult
}

// Slot holds exactly one stage's data at a time. Data is one of
// *L34InSlot, *L34OutSlot, or *L7OutSlot, selected by the owning Batch's
// Tag. Reassigning Data is what plays the role of the source's union
// reinterpretation.
type Slot struct {
	Data any
}

// cacheLineSize is the alignment target called out in SPEC_FULL.md §9.
// Go has no portable way to force heap-allocated slice backing arrays to
// a cache-line boundary; the padding field below only documents the
// intent (a standard-library-only concern — no third-party alignment
// allocator appears anywhere in the corpus, see DESIGN.md).
const cacheLineSize = 64

// Batch is a group of G slots belonging to exactly one stage at a time.
type Batch struct {
	Tag     Stage
	Items   []Slot
	Aligned bool // set by AlignedAllocator when align_tasks is enabled
	_       [cacheLineSize]byte
}

// New allocates a Batch with grainSize empty slots, tagged as L34-input.
func New(grainSize int) *Batch {
	return &Batch{Tag: StageL34In, Items: make([]Slot, grainSize)}
}

// Reset clears a recycled batch back to an empty L34-input batch of the
// same grain size, ready for the L34Emitter to refill.
func (b *Batch) Reset() {
	b.Tag = StageL34In
	for i := range b.Items {
		b.Items[i] = Slot{}
	}
}

// GrainSize returns the number of slots in this batch.
func (b *Batch) GrainSize() int { return len(b.Items) }

// L34In returns slot i reinterpreted as L34-input data. Panics (an
// assertion-level invariant per SPEC_FULL.md §7) if the slot was never
// populated as such.
func (b *Batch) L34In(i int) *L34InSlot {
	s, ok := b.Items[i].Data.(*L34InSlot)
	if !ok {
		panic("task: slot is not an L34-input slot")
	}
	return s
}

// SetL34In installs L34-input data at slot i and tags the batch accordingly.
func (b *Batch) SetL34In(i int, v *L34InSlot) {
	b.Tag = StageL34In
	b.Items[i].Data = v
}

// L34Out returns slot i reinterpreted as L34-output data.
func (b *Batch) L34Out(i int) *L34OutSlot {
	s, ok := b.Items[i].Data.(*L34OutSlot)
	if !ok {
		panic("task: slot is not an L34-output slot")
	}
	return s
}

// SetL34Out installs L34-output data at slot i and tags the batch accordingly.
func (b *Batch) SetL34Out(i int, v *L34OutSlot) {
	b.Tag = StageL34Out
	b.Items[i].Data = v
}

// L7Out returns slot i reinterpreted as L7-output data.
func (b *Batch) L7Out(i int) *L7OutSlot {
	s, ok := b.Items[i].Data.(*L7OutSlot)
	if !ok {
		panic("task: slot is not an L7-output slot")
	}
	return s
}

// SetL7Out installs L7-output data at slot i and tags the batch accordingly.
func (b *Batch) SetL7Out(i int, v *L7OutSlot) {
	b.Tag = StageL7Out
	b.Items[i].Data = v
}

// CopySlotData returns the current Data pointer at slot i without any
// type assertion, whatever stage the slot holds. The pipeline's stage
// transforms build their scratch copies through the typed accessors
// (L34In, L34Out) instead.
func (b *Batch) CopySlotData(i int) any {
	return b.Items[i].Data
}
