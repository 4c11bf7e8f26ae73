//go:build !linux

package runtimeexec

import (
	"fmt"
	"runtime"
)

func applyLimits(pid int, limits ResourceLimits) error {
	if limits.IsZero() {
		return nil
	}
	return fmt.Errorf("resource limits are not supported on %s", runtime.GOOS)
}
