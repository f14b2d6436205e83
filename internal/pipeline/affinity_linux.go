//go:build linux

package pipeline

import "golang.org/x/sys/unix"

// pinToCPU binds the calling OS thread to cpuID, mirroring the source's
// per-role pthread_setaffinity_np call (worker.cpp's mc_dpi_*_thread
// startup). The caller must have already called runtime.LockOSThread —
// otherwise the Go scheduler is free to move the goroutine to a
// different thread and the pin would apply to the wrong one.
func pinToCPU(cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
