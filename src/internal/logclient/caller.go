// FILE: src/internal/logclient/caller.go
package logclient

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/timcash/code-cad/src/internal/core"
)

const callerDepth = 16

// resolveCaller walks the call stack and returns the first frame outside
// this package as "<file>:<line>:<function>". Best effort only; any failure
// yields the unknown-caller marker.
func resolveCaller() string {
	pcs := make([]uintptr, callerDepth)
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return core.UnknownCaller
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !ownFrame(frame) {
			file := filepath.Base(frame.File)
			if fn := shortFuncName(frame.Function); fn != "" {
				return fmt.Sprintf("%s:%d:%s", file, frame.Line, fn)
			}
			return fmt.Sprintf("%s:%d", file, frame.Line)
		}
		if !more {
			break
		}
	}
	return core.UnknownCaller
}

// ownFrame reports whether the frame belongs to the logging component itself.
func ownFrame(frame runtime.Frame) bool {
	dir := filepath.ToSlash(filepath.Dir(frame.File))
	return strings.HasSuffix(dir, "internal/logclient")
}

// shortFuncName trims the package path from a fully qualified function name.
func shortFuncName(qualified string) string {
	if qualified == "" {
		return ""
	}
	if idx := strings.LastIndex(qualified, "/"); idx >= 0 {
		qualified = qualified[idx+1:]
	}
	if idx := strings.Index(qualified, "."); idx >= 0 {
		qualified = qualified[idx+1:]
	}
	return qualified
}
