// FILE: src/internal/collector/collector.go
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
	"github.com/valyala/fastjson"
)

const (
	maxClientBufferSize = 10 * 1024 * 1024 // 10MB max per client
	maxLineLength       = 1 * 1024 * 1024  // 1MB max per frame
)

// Config holds collector settings. Zero values fall back to defaults.
type Config struct {
	Host      string
	Port      int
	Directory string

	// Readiness self-check after the listener starts.
	ReadyAttempts int
	ReadyInterval time.Duration

	// SettleWait lets in-flight appends complete before Stop closes files.
	SettleWait time.Duration
}

// Collector is a durable, append-only multi-producer sink for log
// envelopes. Any number of clients hold persistent TCP connections and send
// newline-delimited JSON frames; each frame is acknowledged individually.
// A malformed frame yields a negative ack and the connection keeps serving.
type Collector struct {
	config Config
	logger *log.Logger

	mu      sync.Mutex
	running bool
	sink    *runSink
	server  *collectorServer
	wg      sync.WaitGroup

	engine   *gnet.Engine
	engineMu sync.Mutex

	// Statistics
	totalEntries   atomic.Uint64
	invalidEntries atomic.Uint64
	failedAppends  atomic.Uint64
	activeConns    atomic.Int64
	startTime      time.Time
}

// Stats is a point-in-time snapshot of collector counters.
type Stats struct {
	Running           bool
	TotalEntries      uint64
	InvalidEntries    uint64
	FailedAppends     uint64
	ActiveConnections int64
	RunStamp          string
	StartTime         time.Time
}

// New creates a collector. Start opens the listener.
func New(cfg Config, logger *log.Logger) *Collector {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 9776
	}
	if cfg.Directory == "" {
		cfg.Directory = "./logs"
	}
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = 20
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = 100 * time.Millisecond
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 200 * time.Millisecond
	}
	return &Collector{
		config: cfg,
		logger: logger,
	}
}

// Addr returns the configured listen endpoint.
func (c *Collector) Addr() string {
	return fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
}

// RunStamp returns the current run's file-set timestamp, or "" when the
// collector is not running.
func (c *Collector) RunStamp() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		return ""
	}
	return c.sink.RunStamp()
}

// Start opens the listening endpoint, creates the log directory if absent,
// and self-verifies readiness by dialing its own endpoint before returning.
// Idempotent: a second call while running is a no-op.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	sink, err := newRunSink(c.config.Directory)
	if err != nil {
		return err
	}
	c.sink = sink
	c.startTime = time.Now()
	c.server = &collectorServer{
		collector: c,
		sink:      sink,
		clients:   make(map[gnet.Conn]*collectorClient),
	}

	addr := fmt.Sprintf("tcp://%s", c.Addr())
	gnetLogger := compat.NewGnetAdapter(c.logger)

	errChan := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Info("msg", "Collector listener starting",
			"component", "collector",
			"addr", c.Addr(),
			"run", sink.RunStamp())

		err := gnet.Run(c.server, addr,
			gnet.WithLogger(gnetLogger),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			c.logger.Error("msg", "Collector listener failed",
				"component", "collector",
				"addr", c.Addr(),
				"error", err)
		}
		errChan <- err
	}()

	if err := c.waitReady(errChan); err != nil {
		c.stopEngine()
		c.wg.Wait()
		c.sink.Close()
		c.sink = nil
		return fmt.Errorf("collector failed to become ready on %s: %w", c.Addr(), err)
	}

	c.running = true
	c.logger.Info("msg", "Collector started",
		"component", "collector",
		"addr", c.Addr(),
		"directory", c.config.Directory)
	return nil
}

// waitReady polls the collector's own endpoint until a dial succeeds,
// failing fast if the listener goroutine reports a startup error.
func (c *Collector) waitReady(errChan <-chan error) error {
	var lastErr error
	for attempt := 0; attempt < c.config.ReadyAttempts; attempt++ {
		select {
		case err := <-errChan:
			if err != nil {
				return err
			}
			return fmt.Errorf("listener exited before becoming ready")
		default:
		}

		conn, err := net.DialTimeout("tcp", c.Addr(), 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(c.config.ReadyInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no readiness attempts configured")
	}
	return lastErr
}

// Stop waits briefly for in-flight appends, closes the listening endpoint,
// and releases the file handles. Idempotent. A later Start creates a new
// run with a fresh timestamp and file set.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.logger.Info("msg", "Stopping collector", "component", "collector")

	time.Sleep(c.config.SettleWait)
	c.stopEngine()
	c.wg.Wait()

	c.sink.Close()
	c.sink = nil
	c.server = nil
	c.running = false

	c.logger.Info("msg", "Collector stopped",
		"component", "collector",
		"total_entries", c.totalEntries.Load(),
		"invalid_entries", c.invalidEntries.Load())
}

func (c *Collector) stopEngine() {
	c.engineMu.Lock()
	engine := c.engine
	c.engine = nil
	c.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = (*engine).Stop(ctx)
	}
}

// GetStats returns a snapshot of collector counters.
func (c *Collector) GetStats() Stats {
	c.mu.Lock()
	running := c.running
	runStamp := ""
	if c.sink != nil {
		runStamp = c.sink.RunStamp()
	}
	c.mu.Unlock()

	return Stats{
		Running:           running,
		TotalEntries:      c.totalEntries.Load(),
		InvalidEntries:    c.invalidEntries.Load(),
		FailedAppends:     c.failedAppends.Load(),
		ActiveConnections: c.activeConns.Load(),
		RunStamp:          runStamp,
		StartTime:         c.startTime,
	}
}

// collectorClient is the per-connection state: a framing buffer, a parser,
// and an opaque session identifier used for diagnostic logging only.
type collectorClient struct {
	buffer    bytes.Buffer
	parser    fastjson.Parser
	sessionID string
}

// collectorServer handles gnet events. It owns a reference to the run sink
// so appends never race with a restart swapping the collector's sink.
type collectorServer struct {
	gnet.BuiltinEventEngine
	collector *Collector
	sink      *runSink
	clients   map[gnet.Conn]*collectorClient
	mu        sync.RWMutex
}

func (s *collectorServer) OnBoot(eng gnet.Engine) gnet.Action {
	s.collector.engineMu.Lock()
	s.collector.engine = &eng
	s.collector.engineMu.Unlock()

	s.collector.logger.Debug("msg", "Collector listener booted",
		"component", "collector",
		"addr", s.collector.Addr())
	return gnet.None
}

func (s *collectorServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	client := &collectorClient{sessionID: uuid.NewString()}

	s.mu.Lock()
	s.clients[c] = client
	s.mu.Unlock()

	newCount := s.collector.activeConns.Add(1)
	s.collector.logger.Debug("msg", "Client connection opened",
		"component", "collector",
		"session", client.sessionID,
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount)
	return nil, gnet.None
}

func (s *collectorServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	client := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	sessionID := ""
	if client != nil {
		sessionID = client.sessionID
	}

	newCount := s.collector.activeConns.Add(-1)
	s.collector.logger.Debug("msg", "Client connection closed",
		"component", "collector",
		"session", sessionID,
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

func (s *collectorServer) OnTraffic(c gnet.Conn) gnet.Action {
	s.mu.RLock()
	client, exists := s.clients[c]
	s.mu.RUnlock()

	if !exists {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		s.collector.logger.Error("msg", "Error reading from connection",
			"component", "collector",
			"session", client.sessionID,
			"error", err)
		return gnet.Close
	}

	// Frame-size abuse is the one condition that does drop a connection.
	if client.buffer.Len()+len(data) > maxClientBufferSize {
		s.collector.logger.Warn("msg", "Client buffer limit exceeded, closing connection",
			"component", "collector",
			"session", client.sessionID,
			"buffer_size", client.buffer.Len(),
			"incoming_size", len(data))
		return gnet.Close
	}
	client.buffer.Write(data)

	if client.buffer.Len() > maxLineLength && !bytes.ContainsRune(client.buffer.Bytes(), '\n') {
		s.collector.logger.Warn("msg", "Frame too long without newline, closing connection",
			"component", "collector",
			"session", client.sessionID,
			"buffer_size", client.buffer.Len())
		return gnet.Close
	}

	for {
		line, err := client.buffer.ReadBytes('\n')
		if err != nil {
			// No complete frame available
			break
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		s.handleFrame(c, client, line)
	}

	return gnet.None
}

// handleFrame validates one frame, appends it on success, and always sends
// exactly one ack. Rejections never drop the connection.
func (s *collectorServer) handleFrame(c gnet.Conn, client *collectorClient, line []byte) {
	envelope, reason := parseEnvelope(&client.parser, line)
	if reason != "" {
		s.collector.invalidEntries.Add(1)
		s.collector.logger.Debug("msg", "Rejected log frame",
			"component", "collector",
			"session", client.sessionID,
			"reason", reason)
		s.ack(c, core.Ack{Status: core.StatusError, Reason: reason})
		return
	}

	if err := s.sink.Append(sanitizeService(envelope.Service), envelope.Entry); err != nil {
		s.collector.failedAppends.Add(1)
		s.collector.logger.Error("msg", "File append failed",
			"component", "collector",
			"session", client.sessionID,
			"service", envelope.Service,
			"error", err)
		s.ack(c, core.Ack{Status: core.StatusError, Reason: core.ReasonWriteFailed})
		return
	}

	s.collector.totalEntries.Add(1)
	s.ack(c, core.Ack{Status: core.StatusOK})
}

func (s *collectorServer) ack(c gnet.Conn, ack core.Ack) {
	// Error impossible: Ack contains only strings
	frame, _ := json.Marshal(ack)
	frame = append(frame, '\n')
	_ = c.AsyncWrite(frame, nil)
}

// sanitizeService keeps service-derived file names inside the log directory
// and off the combined file's reserved name.
func sanitizeService(service string) string {
	out := []rune(service)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			out[i] = '_'
		}
	}
	if string(out) == combinedName {
		return combinedName + "_svc"
	}
	return string(out)
}
