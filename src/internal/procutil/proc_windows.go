// FILE: src/internal/procutil/proc_windows.go
//go:build windows

package procutil

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

type native struct{}

func (native) SetDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func (native) KillByName(name string, force bool) error {
	args := []string{"/IM", name}
	if force {
		args = append(args, "/F")
	}
	out, err := exec.Command("taskkill", args...).CombinedOutput()
	if err != nil {
		// taskkill reports "not found" as an error; treat as success
		if strings.Contains(string(out), "not found") {
			return nil
		}
		return err
	}
	return nil
}

func (native) Terminate(pid int, force bool) error {
	// Windows has no graceful signal for GUI-less processes; kill directly.
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (native) Alive(pid int) bool {
	out, err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid), "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}
