package pipeline

import (
	"runtime"

	"NetSpectraDPI/internal/dpimodel"
	"NetSpectraDPI/internal/task"
)

// L7Collector is the pipeline's sink stage, grounded on worker.cpp's
// dpi_L7_collector::svc: it delivers each slot's classification result
// to the user callback, skipping shutdown-padding slots, then recycles
// the batch back to the task pool.
type L7Collector struct {
	cpuID    int
	pool     *task.Pool
	onResult ResultCallback
}

func NewL7Collector(cpuID int, pool *task.Pool, onResult ResultCallback) *L7Collector {
	return &L7Collector{cpuID: cpuID, pool: pool, onResult: onResult}
}

func (c *L7Collector) Init() error {
	runtime.LockOSThread()
	return pinToCPU(c.cpuID)
}

func (c *L7Collector) CPUID() int { return c.cpuID }

// Step implements SPEC_FULL.md §4.6 and §8 property 4 (drop-padding
// slots are never delivered). If the pool is already at capacity the
// batch is simply left for the garbage collector — the source's
// dpi_free_task has no equivalent failure mode, but SPEC_FULL.md's pool
// accounting only promises a batch is recycled when there is room.
func (c *L7Collector) Step(batch *task.Batch) {
	grain := batch.GrainSize()
	for i := 0; i < grain; i++ {
		out := batch.L7Out(i)
		if out.Result.Status == dpimodel.StatusDrop {
			continue
		}
		if c.onResult != nil {
			c.onResult(out.Result)
		}
	}
	c.pool.TryPush(batch)
}

// Drain empties the task pool once the pipeline has fully shut down
// (SPEC_FULL.md §8 scenario S5: "pool fully drained" becomes observable).
func (c *L7Collector) Drain() {
	c.pool.DrainAndFree()
}
