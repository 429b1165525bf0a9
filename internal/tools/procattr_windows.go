//go:build windows

package tools

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd in a new process group. Cancellation kills the
// direct child; Windows has no portable group kill without job objects.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}

func killGroup(*exec.Cmd) {}
