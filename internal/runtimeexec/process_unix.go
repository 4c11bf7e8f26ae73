//go:build unix

package runtimeexec

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// prepareCommand puts the child in its own process group so cancellation
// reaches anything it spawned.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
}

// reapGroup kills stragglers left in the group after the leader exited.
func reapGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = killGroup(cmd.Process.Pid)
}

func killGroup(pid int) error {
	if pid <= 0 {
		return os.ErrProcessDone
	}
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
