//go:build linux

package runtimeexec

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// applyLimits sets address-space and CPU-time rlimits on a running child.
func applyLimits(pid int, limits ResourceLimits) error {
	if limits.MemoryBytes > 0 {
		lim := unix.Rlimit{Cur: limits.MemoryBytes, Max: limits.MemoryBytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &lim, nil); err != nil {
			return fmt.Errorf("set address space limit: %w", err)
		}
	}
	if limits.CPUSeconds > 0 {
		lim := unix.Rlimit{Cur: limits.CPUSeconds, Max: limits.CPUSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &lim, nil); err != nil {
			return fmt.Errorf("set cpu limit: %w", err)
		}
	}
	return nil
}
