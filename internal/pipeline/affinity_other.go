//go:build !linux

package pipeline

// pinToCPU is a no-op outside Linux: golang.org/x/sys/unix only exposes
// SchedSetaffinity there. Every other platform runs unpinned, which is
// the same degraded mode SPEC_FULL.md §5 prescribes when affinity is
// unavailable.
func pinToCPU(cpuID int) error {
	return nil
}
