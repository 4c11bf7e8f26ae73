//go:build !unix

package runtimeexec

import "os/exec"

func prepareCommand(cmd *exec.Cmd) {}

func reapGroup(cmd *exec.Cmd) {}
