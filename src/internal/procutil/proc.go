// FILE: src/internal/procutil/proc.go
package procutil

import "os/exec"

// Terminator abstracts platform-specific process control so lifecycle code
// stays free of GOOS branches. Native() selects the implementation for the
// current operating system family at startup.
type Terminator interface {
	// SetDetached configures the command to outlive its parent process
	// group, so the spawned browser survives test-process signals.
	SetDetached(cmd *exec.Cmd)

	// KillByName terminates every process whose executable matches name.
	// Best effort: "no such process" is not an error.
	KillByName(name string, force bool) error

	// Terminate stops one process: graceful signal first where the
	// platform supports it, forced kill when force is set.
	Terminate(pid int, force bool) error

	// Alive reports whether the process still exists.
	Alive(pid int) bool
}

// Native returns the Terminator for the current platform.
func Native() Terminator {
	return native{}
}
