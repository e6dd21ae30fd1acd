//go:build windows

package infrastructure

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup starts the child in a new process group
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup is a no-op, descendants are swept by pid instead
func killProcessGroup(pid int) {}
