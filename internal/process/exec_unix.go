//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so that
// killProcessGroup can take down the whole tree it spawns, not just
// the immediate child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup is called when the run's context expires before the
// command exits on its own, or when the memory guard trips. A killed
// process group is reported to the caller as a non-zero (in fact, -1)
// exit code, which the engine treats as CommandFailure.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
