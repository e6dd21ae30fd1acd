//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup starts the child in its own process group so the whole
// tree can be signalled at once
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create new process group
		Pgid:    0,    // Use the new process's PID as PGID
	}
}

// killProcessGroup sends SIGKILL to every member of the group led by pid
func killProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}
