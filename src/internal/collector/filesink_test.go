// FILE: src/internal/collector/filesink_test.go
package collector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(level, message string) core.LogRecord {
	return core.LogRecord{
		Level:     level,
		Message:   message,
		Timestamp: "2026-08-25 10:30:45",
		Caller:    "main.go:10:main",
	}
}

func readSinkFile(t *testing.T, dir, run, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, run+"_"+name+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestRunSink_AppendRouting(t *testing.T) {
	dir := t.TempDir()
	sink, err := newRunSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	run := sink.RunStamp()
	_, err = time.Parse(core.RunStampLayout, run)
	require.NoError(t, err, "run stamp %q not in run-stamp layout", run)

	require.NoError(t, sink.Append("backend", testRecord("INFO", "backend up")))
	require.NoError(t, sink.Append("frontend", testRecord("WARN", "slow render")))
	require.NoError(t, sink.Append("backend", testRecord("ERROR", "solver diverged")))

	backend := readSinkFile(t, dir, run, "backend")
	assert.Equal(t,
		"[2026-08-25 10:30:45, backend, INFO, main.go:10:main] backend up\n"+
			"[2026-08-25 10:30:45, backend, ERROR, main.go:10:main] solver diverged\n",
		backend)

	frontend := readSinkFile(t, dir, run, "frontend")
	assert.Equal(t, "[2026-08-25 10:30:45, frontend, WARN, main.go:10:main] slow render\n", frontend)

	// The combined file interleaves every service in arrival order.
	combined := readSinkFile(t, dir, run, "all")
	lines := strings.Split(strings.TrimRight(combined, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "backend up")
	assert.Contains(t, lines[1], "slow render")
	assert.Contains(t, lines[2], "solver diverged")
}

func TestRunSink_AppendAfterReopenKeepsContent(t *testing.T) {
	dir := t.TempDir()
	sink, err := newRunSink(dir)
	require.NoError(t, err)
	run := sink.RunStamp()

	require.NoError(t, sink.Append("svc", testRecord("INFO", "first")))
	sink.Close()

	// Appending through a new sink with the same stamp (same second) must
	// extend the files, never truncate them.
	reopened := &runSink{directory: dir, runStamp: run, files: map[string]*os.File{}}
	defer reopened.Close()
	require.NoError(t, reopened.Append("svc", testRecord("INFO", "second")))

	content := readSinkFile(t, dir, run, "svc")
	assert.Contains(t, content, "first")
	assert.Contains(t, content, "second")
	assert.True(t, strings.Index(content, "first") < strings.Index(content, "second"))
}

func TestRunSink_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	sink, err := newRunSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Append("svc", testRecord("INFO", "hello")))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunSink_CloseIdempotent(t *testing.T) {
	sink, err := newRunSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.Append("svc", testRecord("INFO", "hello")))

	sink.Close()
	sink.Close()
}
