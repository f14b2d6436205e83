package pipeline

import (
	"runtime"

	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/task"
)

// L34Worker is the single parsing stage between the L34Emitter and the
// L7Emitter, grounded on worker.cpp's dpi_L3_L4_worker::svc. It copies
// the incoming L34-input slots aside before overwriting them in place
// with L34-output slots, matching the source's memcpy-then-reuse
// discipline for its union task buffer.
type L34Worker struct {
	cpuID           int
	extractor       dissector.L34Extractor
	hasher          dissector.FlowHasher
	v4RowsPerWorker uint32
	v6RowsPerWorker uint32
}

func NewL34Worker(cpuID int, extractor dissector.L34Extractor, hasher dissector.FlowHasher, v4RowsPerWorker, v6RowsPerWorker uint32) *L34Worker {
	return &L34Worker{cpuID: cpuID, extractor: extractor, hasher: hasher, v4RowsPerWorker: v4RowsPerWorker, v6RowsPerWorker: v6RowsPerWorker}
}

func (w *L34Worker) Init() error {
	runtime.LockOSThread()
	return pinToCPU(w.cpuID)
}

func (w *L34Worker) CPUID() int { return w.cpuID }

// Step implements SPEC_FULL.md §4.3: for each slot, extract, then route
// by l4 protocol support and fragment status, computing the destination
// worker only for slots that need a flow lookup.
func (w *L34Worker) Step(batch *task.Batch) *task.Batch {
	grain := batch.GrainSize()
	scratch := make([]task.L34InSlot, grain)
	for i := 0; i < grain; i++ {
		scratch[i] = *batch.L34In(i)
	}

	for i := range scratch {
		in := &scratch[i]
		out := &task.L34OutSlot{CorrelationData: in.CorrelationData}

		if droppedSlot(in) {
			out.Parse = dpimodel.ParseResult{Status: dpimodel.StatusDrop}
			batch.SetL34Out(i, out)
			continue
		}

		parsed := w.extractor.Extract(in.Packet.Payload, in.Packet.ArrivalTime)
		parsed.Packet = in.Packet
		out.Parse = parsed

		switch {
		case parsed.Status.IsError():
			// leave as-is: status already carries the error.
		case parsed.FiveTuple.Protocol != dpimodel.ProtoTCP && parsed.FiveTuple.Protocol != dpimodel.ProtoUDP:
			out.Parse.Status = dpimodel.StatusTransportNotSupported
		case parsed.Status == dpimodel.StatusIPFragment:
			// non-terminal fragment: status recorded, no routing performed.
		default:
			var hash uint32
			var rowsPerWorker uint32
			if parsed.IPVersion == dpimodel.IPv6 {
				hash = w.hasher.HashV6(parsed.FiveTuple)
				rowsPerWorker = w.v6RowsPerWorker
			} else {
				hash = w.hasher.HashV4(parsed.FiveTuple)
				rowsPerWorker = w.v4RowsPerWorker
			}
			out.Parse.FlowHash = hash
			out.DestinationWorker = hash / rowsPerWorker
		}

		batch.SetL34Out(i, out)
	}
	return batch
}
