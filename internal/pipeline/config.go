package pipeline

import "fmt"

// NUMAConfig mirrors SPEC_FULL.md §6's numa_aware switch: when Enabled,
// task batches are requested from the given node via a
// task.NUMALocalAllocator (best-effort; see internal/task/allocator.go).
type NUMAConfig struct {
	Enabled bool
	Node    int
}

// Config is the pipeline's enumerated configuration, following
// SPEC_FULL.md §6 field for field. CPUIDs lays out one entry per pinned
// role: in expanded mode, [L34Emitter, L34Worker, L7Emitter, worker_0,
// ..., worker_{W-1}, L7Collector] (length 4+W); in collapsed mode,
// [CollapsedEmitter, worker_0, ..., worker_{W-1}, L7Collector] (length
// 2+W). A -1 entry leaves that role unpinned.
type Config struct {
	GrainSize     int
	NumL7Workers  int
	CPUIDs        []int
	TasksPoolSize int
	V4Rows        uint32
	V6Rows        uint32
	NUMAAware     NUMAConfig
	AlignTasks    bool
	Collapsed     bool
}

func (c Config) expectedCPUIDLen() int {
	if c.Collapsed {
		return 2 + c.NumL7Workers
	}
	return 4 + c.NumL7Workers
}

// Validate checks the structural constraints SPEC_FULL.md §6 and §7 call
// out explicitly (grain size positive, row counts divisible by worker
// count, cpu_ids sized to the topology).
func (c Config) Validate() error {
	if c.GrainSize <= 0 {
		return fmt.Errorf("pipeline: grain size must be positive, got %d", c.GrainSize)
	}
	if c.NumL7Workers <= 0 {
		return fmt.Errorf("pipeline: num L7 workers must be positive, got %d", c.NumL7Workers)
	}
	if c.TasksPoolSize <= 0 {
		return fmt.Errorf("pipeline: tasks pool size must be positive, got %d", c.TasksPoolSize)
	}
	if c.V4Rows == 0 {
		return fmt.Errorf("pipeline: v4 rows must be positive, got %d", c.V4Rows)
	}
	if c.V6Rows == 0 {
		return fmt.Errorf("pipeline: v6 rows must be positive, got %d", c.V6Rows)
	}
	if c.V4Rows%uint32(c.NumL7Workers) != 0 {
		return fmt.Errorf("pipeline: v4 rows (%d) must be divisible by num L7 workers (%d)", c.V4Rows, c.NumL7Workers)
	}
	if c.V6Rows%uint32(c.NumL7Workers) != 0 {
		return fmt.Errorf("pipeline: v6 rows (%d) must be divisible by num L7 workers (%d)", c.V6Rows, c.NumL7Workers)
	}
	if c.CPUIDs != nil && len(c.CPUIDs) != c.expectedCPUIDLen() {
		return fmt.Errorf("pipeline: cpu_ids has %d entries, want %d for this topology", len(c.CPUIDs), c.expectedCPUIDLen())
	}
	return nil
}

func (c Config) cpuID(role int) int {
	if c.CPUIDs == nil {
		return -1
	}
	return c.CPUIDs[role]
}
