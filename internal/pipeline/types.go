package pipeline

import (
	"context"

	"NetSpectraDPI/internal/dpimodel"
)

// Signal is the control outcome of one actor Step: either there is more
// work to do, or the actor has reached end-of-stream and the caller
// should stop driving it and propagate shutdown downstream.
type Signal int

const (
	SignalContinue Signal = iota
	SignalEOS
)

// PacketSource is the packet-reading collaborator SPEC_FULL.md §6 treats
// as opaque: ReadPacket returns io.EOF to signal end-of-stream, exactly
// as a null pkt does in the source's packet_reading_callback contract.
type PacketSource interface {
	ReadPacket(ctx context.Context) (*dpimodel.PacketRecord, error)
}

// ResultCallback is the processing_result_callback collaborator: invoked
// once per processed packet, in per-flow order, by the L7Collector.
type ResultCallback func(dpimodel.ClassificationResult)

// Scheduler receives advisory victim hints when the L7Emitter dispatches
// a full batch to a worker (SPEC_FULL.md §4.4's set_victim). It never
// influences correctness — only, in a real work-stealing runtime, where
// an idle worker looks first.
type Scheduler interface {
	SetVictim(workerID int)
}
