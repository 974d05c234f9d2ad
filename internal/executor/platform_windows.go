//go:build windows

package executor

import "os/exec"

func setupProcessGroup(cmd *exec.Cmd) {}

// Windows has no graceful termination signal for console children;
// terminate and kill both hard-kill.
func terminate(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
