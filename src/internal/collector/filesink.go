// FILE: src/internal/collector/filesink.go
package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timcash/code-cad/src/internal/core"
)

// runSink appends formatted records to the current run's file set: one file
// per service plus a combined file, all named by the run-start timestamp
// fixed when the sink is created. Each append is a single O_APPEND write of
// one line; the per-service and combined writes are independent, so a crash
// between them can leave one file ahead of the other. Diagnostic use only.
type runSink struct {
	directory string
	runStamp  string

	mu    sync.Mutex
	files map[string]*os.File
}

const combinedName = "all"

func newRunSink(directory string) (*runSink, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &runSink{
		directory: directory,
		runStamp:  time.Now().Format(core.RunStampLayout),
		files:     make(map[string]*os.File),
	}, nil
}

// RunStamp returns the fixed run-start timestamp naming this run's files.
func (s *runSink) RunStamp() string {
	return s.runStamp
}

// Append writes one record line to the per-service file and the combined
// file. Both writes are attempted; the first error wins.
func (s *runSink) Append(service string, entry core.LogRecord) error {
	line := entry.FormatLine(service) + "\n"

	var firstErr error
	for _, name := range []string{service, combinedName} {
		f, err := s.file(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := f.WriteString(line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// file returns the open handle for the given name, opening it on first use.
func (s *runSink) file(name string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.files[name]; ok {
		return f, nil
	}
	path := filepath.Join(s.directory, fmt.Sprintf("%s_%s.log", s.runStamp, name))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// Close releases all file handles. A later run opens a fresh set.
func (s *runSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, f := range s.files {
		_ = f.Close()
		delete(s.files, name)
	}
}
