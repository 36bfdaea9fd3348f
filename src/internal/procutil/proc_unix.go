// FILE: src/internal/procutil/proc_unix.go
//go:build !windows

package procutil

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

type native struct{}

func (native) SetDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func (native) KillByName(name string, force bool) error {
	sig := "-TERM"
	if force {
		sig = "-KILL"
	}
	out, err := exec.Command("pkill", sig, "-x", name).CombinedOutput()
	if err != nil {
		// Exit status 1 means no process matched
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil
		}
		_ = out
		return err
	}
	return nil
}

func (n native) Terminate(pid int, force bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if force {
		return ignoreDone(process.Kill())
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return nil
	}
	time.Sleep(200 * time.Millisecond)
	if n.Alive(pid) {
		return ignoreDone(process.Kill())
	}
	return nil
}

// ignoreDone drops the error for a process that exited on its own before
// the kill landed.
func ignoreDone(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (native) Alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
