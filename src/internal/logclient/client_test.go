// FILE: src/internal/logclient/client_test.go
package logclient

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// ackServer is a minimal collector stand-in: it accepts connections, records
// every newline-delimited frame, and acks each one.
type ackServer struct {
	listener net.Listener
	mu       sync.Mutex
	frames   []string
	wg       sync.WaitGroup
}

func startAckServer(t *testing.T) *ackServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &ackServer{listener: listener}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go s.serve(conn)
		}
	}()
	t.Cleanup(s.Stop)
	return s
}

func (s *ackServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.mu.Lock()
		s.frames = append(s.frames, scanner.Text())
		s.mu.Unlock()
		if _, err := conn.Write([]byte(`{"status":"ok"}` + "\n")); err != nil {
			return
		}
	}
}

func (s *ackServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *ackServer) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *ackServer) Stop() {
	_ = s.listener.Close()
}

// unreachableAddr returns a loopback endpoint with no listener behind it.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestClient_DeliversRecords(t *testing.T) {
	server := startAckServer(t)

	c := New(Config{
		Service:  "backend",
		Address:  server.Addr(),
		Registry: NewRegistry(),
	}, newTestLogger())
	defer c.Close()

	c.Info("design loaded")
	c.Warn("parameter out of range, clamped")
	c.Error("solver diverged")

	require.Eventually(t, func() bool {
		return c.GetStats().TotalSent == 3
	}, 5*time.Second, 10*time.Millisecond, "records not delivered")

	frames := server.Frames()
	require.Len(t, frames, 3)
	assert.Contains(t, frames[0], `"service":"backend"`)
	assert.Contains(t, frames[0], "design loaded")
	assert.Contains(t, frames[1], `"WARN"`)
	assert.Contains(t, frames[2], "solver diverged")

	stats := c.GetStats()
	assert.Equal(t, 0, stats.Pending)
	assert.EqualValues(t, 3, stats.TotalLogged)
}

func TestClient_BuffersWhileDisconnected(t *testing.T) {
	c := New(Config{
		Service:        "frontend",
		Address:        unreachableAddr(t),
		ReconnectDelay: time.Hour, // keep the test deterministic
		DialTimeout:    100 * time.Millisecond,
		Registry:       NewRegistry(),
	}, newTestLogger())
	defer c.Close()

	c.Info("one")
	c.Info("two")
	c.Info("three")

	require.Eventually(t, func() bool {
		stats := c.GetStats()
		return !stats.Connected && stats.Pending == 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 0, c.GetStats().TotalSent)
}

func TestClient_DropOldestOnOverflow(t *testing.T) {
	c := New(Config{
		Service:        "frontend",
		Address:        unreachableAddr(t),
		MaxBufferSize:  2,
		ReconnectDelay: time.Hour,
		DialTimeout:    100 * time.Millisecond,
		Registry:       NewRegistry(),
	}, newTestLogger())
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Info("message")
	}

	stats := c.GetStats()
	assert.EqualValues(t, 3, stats.TotalEvicted)
	assert.Equal(t, 2, stats.Pending)
}

func TestClient_ReconnectsAndFlushes(t *testing.T) {
	// Reserve an address, leave it dark, then bring a server up on it after
	// the client has buffered records.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	c := New(Config{
		Service:        "backend",
		Address:        addr,
		ReconnectDelay: 20 * time.Millisecond,
		DialTimeout:    100 * time.Millisecond,
		Registry:       NewRegistry(),
	}, newTestLogger())
	defer c.Close()

	c.Info("buffered before collector start")
	c.Info("also buffered")

	listener, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	server := &ackServer{listener: listener}
	server.wg.Add(1)
	go func() {
		defer server.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			server.wg.Add(1)
			go server.serve(conn)
		}
	}()
	defer server.Stop()

	require.Eventually(t, func() bool {
		return c.GetStats().TotalSent == 2
	}, 10*time.Second, 10*time.Millisecond, "buffered records not flushed after reconnect")

	frames := server.Frames()
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], "buffered before collector start")
	assert.Contains(t, frames[1], "also buffered")
}

func TestClient_LogStaysPromptWhenPeerStallsWrites(t *testing.T) {
	// A peer that accepts the connection but never reads lets the socket
	// buffers fill; once they do, connection writes block until the write
	// deadline. Log must stay on the queue side of that and return quickly
	// regardless.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	stalled := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		stalled <- conn
	}()

	c := New(Config{
		Service:        "backend",
		Address:        listener.Addr().String(),
		WriteTimeout:   time.Second,
		ReconnectDelay: time.Hour,
		DialTimeout:    time.Second,
		Registry:       NewRegistry(),
	}, newTestLogger())
	defer c.Close()
	defer func() {
		select {
		case conn := <-stalled:
			_ = conn.Close()
		default:
		}
	}()

	require.Eventually(t, func() bool {
		return c.GetStats().Connected
	}, 5*time.Second, 10*time.Millisecond)

	// Enough payload to exhaust socket buffers many times over.
	payload := strings.Repeat("x", 128*1024)
	var worst time.Duration
	for i := 0; i < 80; i++ {
		start := time.Now()
		c.Info(payload)
		if d := time.Since(start); d > worst {
			worst = d
		}
	}

	assert.Less(t, worst, 500*time.Millisecond,
		"Log call blocked for %s on a stalled connection", worst)
}

func TestClient_ConsoleMirror(t *testing.T) {
	var console bytes.Buffer
	c := New(Config{
		Service:         "backend",
		Address:         unreachableAddr(t),
		ReconnectDelay:  time.Hour,
		DialTimeout:     100 * time.Millisecond,
		EnableConsole:   true,
		ConsoleMinLevel: core.LevelWarn,
		ConsoleWriter:   &console,
		Registry:        NewRegistry(),
	}, newTestLogger())
	defer c.Close()

	c.Info("below threshold")
	c.Error("above threshold")

	out := console.String()
	assert.NotContains(t, out, "below threshold")
	assert.Contains(t, out, "above threshold")
	assert.Contains(t, out, ", backend, ERROR, ")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestClient_CloseIdempotent(t *testing.T) {
	registry := NewRegistry()
	c := New(Config{
		Service:        "backend",
		Address:        unreachableAddr(t),
		ReconnectDelay: time.Hour,
		DialTimeout:    100 * time.Millisecond,
		Registry:       registry,
	}, newTestLogger())

	c.Info("before close")
	c.Close()
	c.Close()

	assert.Equal(t, 0, registry.Count())

	// Logging after disposal must not panic and must not buffer.
	c.Info("after close")
	assert.Equal(t, 0, c.GetStats().Pending)
}
