package pipeline

import (
	"context"
	"runtime"
)

// CollapsedEmitter runs the L34Emitter, L34Worker and L7Emitter stages on
// a single goroutine/CPU, grounded on worker.cpp's
// dpi_collapsed_emitter::svc. The source models this by having
// dpi_collapsed_emitter inherit from dpi_L7_emitter and call straight
// down into the other two stages' svc methods; a Go type cannot extend
// another type's behavior that way without embedding reading as
// inheritance, so this instead holds each stage as a plain field and
// delegates to its exported Step/Init methods explicitly — composition,
// not embedding (see DESIGN.md's Open Question decision on this point).
type CollapsedEmitter struct {
	cpuID   int
	l34Emit *L34Emitter
	l34Work *L34Worker
	l7Emit  *L7Emitter
}

func NewCollapsedEmitter(cpuID int, l34Emit *L34Emitter, l34Work *L34Worker, l7Emit *L7Emitter) *CollapsedEmitter {
	return &CollapsedEmitter{cpuID: cpuID, l34Emit: l34Emit, l34Work: l34Work, l7Emit: l7Emit}
}

func (c *CollapsedEmitter) Init() error {
	runtime.LockOSThread()
	return pinToCPU(c.cpuID)
}

func (c *CollapsedEmitter) CPUID() int { return c.cpuID }

// Step runs one L34Emitter acquisition through L34Worker parsing through
// L7Emitter dispatch, all on the calling goroutine. An EOS from the
// L34Emitter (with its StatusDrop-padded partial batch, if any) is still
// parsed and dispatched before the caller is told to flush and stop.
func (c *CollapsedEmitter) Step(ctx context.Context) (Signal, error) {
	batch, sig, err := c.l34Emit.Step(ctx)
	if err != nil {
		return SignalContinue, err
	}
	if batch == nil {
		return sig, nil
	}
	out := c.l34Work.Step(batch)
	if err := c.l7Emit.Step(ctx, out); err != nil {
		return SignalContinue, err
	}
	return sig, nil
}

// FlushPartials delegates to the held L7Emitter's flush.
func (c *CollapsedEmitter) FlushPartials(ctx context.Context) error {
	return c.l7Emit.FlushPartials(ctx)
}
