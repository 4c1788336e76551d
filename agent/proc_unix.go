//go:build unix

package agent

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the script in its own process group so signals reach
// everything it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateGroup(pid int) error {
	return ignoreGone(syscall.Kill(-pid, syscall.SIGTERM))
}

func killGroup(pid int) error {
	return ignoreGone(syscall.Kill(-pid, syscall.SIGKILL))
}

func ignoreGone(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
