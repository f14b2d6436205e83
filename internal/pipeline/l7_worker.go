package pipeline

import (
	"runtime"

	"NetSpectraDPI/internal/dissector"
	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/flowtable"
	"NetSpectraDPI/internal/task"
)

// L7Worker owns one contiguous shard of each flow table and runs the
// stateful classification step, grounded on worker.cpp's
// dpi_L7_worker::svc. Exactly one goroutine ever calls Step for a given
// L7Worker, so its flow-table shard accesses need no synchronization
// (invariants F1/F3).
type L7Worker struct {
	cpuID      int
	workerID   int
	tableV4    *flowtable.Table
	tableV6    *flowtable.Table
	classifier dissector.L7Classifier
	cleanup    dissector.FlowCleanupCallback
}

func NewL7Worker(cpuID, workerID int, tableV4, tableV6 *flowtable.Table, classifier dissector.L7Classifier, cleanup dissector.FlowCleanupCallback) *L7Worker {
	return &L7Worker{cpuID: cpuID, workerID: workerID, tableV4: tableV4, tableV6: tableV6, classifier: classifier, cleanup: cleanup}
}

func (w *L7Worker) Init() error {
	runtime.LockOSThread()
	return pinToCPU(w.cpuID)
}

func (w *L7Worker) CPUID() int { return w.cpuID }

// Step implements SPEC_FULL.md §4.5. It copies the incoming L34-output
// slots aside before overwriting them with L7-output slots, then walks
// them in order: statuses that need no flow lookup pass through
// unchanged; a max_flows allocation failure stops processing the rest of
// the batch (the source's `break`), padding what remains as dropped so
// no slot is left with stale data.
func (w *L7Worker) Step(batch *task.Batch) *task.Batch {
	grain := batch.GrainSize()
	scratch := make([]task.L34OutSlot, grain)
	for i := 0; i < grain; i++ {
		scratch[i] = *batch.L34Out(i)
	}

	for i := range scratch {
		in := &scratch[i]
		status := in.Parse.Status

		if status.IsError() || status == dpimodel.StatusIPFragment || status == dpimodel.StatusTransportNotSupported || status == dpimodel.StatusDrop {
			batch.SetL7Out(i, &task.L7OutSlot{Result: dpimodel.ClassificationResult{Status: status, CorrelationData: in.CorrelationData}})
			continue
		}

		ft := in.Parse.FiveTuple
		table := w.tableV4
		if in.Parse.IPVersion == dpimodel.IPv6 {
			table = w.tableV6
		}
		shard := table.Shard(w.workerID)

		row, ok := shard.FindOrCreate(ft, func() dissector.FlowState { return w.classifier.NewFlowState(ft) })
		if !ok {
			// max_flows: this slot's reassembled payload (if any) is never
			// classified, so release it here — the only place it is freed
			// on this path.
			in.Parse.Reassembled = nil
			batch.SetL7Out(i, &task.L7OutSlot{Result: dpimodel.ClassificationResult{Status: dpimodel.StatusMaxFlows, FiveTuple: ft, CorrelationData: in.CorrelationData}})
			for j := i + 1; j < len(scratch); j++ {
				batch.SetL7Out(j, &task.L7OutSlot{Result: dpimodel.ClassificationResult{Status: dpimodel.StatusDrop}})
			}
			break
		}

		result := w.classifier.Classify(row.State, in.Parse)
		result.CorrelationData = in.CorrelationData
		result.FiveTuple = ft

		if result.Status == dpimodel.StatusTCPConnectionTerminated {
			if deleted, ok2 := shard.Delete(ft); ok2 && w.cleanup != nil {
				w.cleanup(ft, deleted.State)
			}
		}
		// Reassembled payload ownership, taken on for the last fragment of a
		// datagram, ends here: the classifier has now seen it exactly once.
		in.Parse.Reassembled = nil

		batch.SetL7Out(i, &task.L7OutSlot{Result: result})
	}
	return batch
}
