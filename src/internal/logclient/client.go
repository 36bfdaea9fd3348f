// FILE: src/internal/logclient/client.go
package logclient

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/lixenwraith/log"
)

// Connection states for the client's reconnect machine.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Config holds per-client settings. Zero values fall back to defaults.
type Config struct {
	// Service names the emitting logical process, e.g. "backend".
	Service string

	// Address of the collector endpoint (host:port).
	Address string

	// MaxBufferSize bounds the pending queue; overflow drops the oldest.
	MaxBufferSize int

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration

	// EnableConsole mirrors records at or above ConsoleMinLevel to
	// ConsoleWriter (stderr when nil).
	EnableConsole   bool
	ConsoleMinLevel string
	ConsoleWriter   io.Writer

	// Registry overrides the process-wide default instance registry.
	Registry *Registry
}

// Client buffers leveled log calls and forwards them to the collector over a
// persistent TCP connection. Log calls never block on network I/O and never
// surface an error to the caller; network loss degrades to bounded buffering
// plus console mirroring.
type Client struct {
	config   Config
	logger   *log.Logger
	registry *Registry

	mu             sync.Mutex
	queue          *recordQueue
	conn           net.Conn
	state          connState
	reconnectDelay time.Duration
	reconnectTimer *time.Timer
	closed         bool

	// wake nudges the sender goroutine; done stops it. All connection
	// writes happen on the sender so Log never touches the network.
	wake   chan struct{}
	done   chan struct{}
	sendWg sync.WaitGroup

	wg sync.WaitGroup

	// Statistics
	totalLogged     atomic.Uint64
	totalSent       atomic.Uint64
	totalEvicted    atomic.Uint64
	totalReconnects atomic.Uint64
	ackErrors       atomic.Uint64
}

// ClientStats is a point-in-time snapshot of client counters.
type ClientStats struct {
	Service         string
	Connected       bool
	Pending         int
	TotalLogged     uint64
	TotalSent       uint64
	TotalEvicted    uint64
	TotalReconnects uint64
	AckErrors       uint64
}

// New creates a client and starts connecting in the background.
// Construction never fails, even when the collector is unreachable.
func New(cfg Config, logger *log.Logger) *Client {
	if cfg.Service == "" {
		cfg.Service = "unknown"
	}
	if cfg.Address == "" {
		cfg.Address = core.DefaultCollectorAddr
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = core.DefaultMaxBufferSize
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = core.DefaultReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = core.DefaultMaxReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ConsoleMinLevel == "" {
		cfg.ConsoleMinLevel = core.LevelDebug
	} else {
		cfg.ConsoleMinLevel = core.NormalizeLevel(cfg.ConsoleMinLevel)
	}
	if cfg.ConsoleWriter == nil {
		cfg.ConsoleWriter = os.Stderr
	}
	if cfg.Registry == nil {
		cfg.Registry = Default()
	}

	c := &Client{
		config:         cfg,
		logger:         logger,
		registry:       cfg.Registry,
		queue:          newRecordQueue(cfg.MaxBufferSize),
		state:          stateDisconnected,
		reconnectDelay: cfg.ReconnectDelay,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	c.registry.Register(c)
	c.registry.InstallExitHook()

	c.sendWg.Add(1)
	go c.sendLoop()
	go c.connect()
	return c
}

// Service returns the client's logical service name.
func (c *Client) Service() string {
	return c.config.Service
}

func (c *Client) Debug(message string) { c.Log(core.LevelDebug, message) }
func (c *Client) Info(message string)  { c.Log(core.LevelInfo, message) }
func (c *Client) Warn(message string)  { c.Log(core.LevelWarn, message) }
func (c *Client) Error(message string) { c.Log(core.LevelError, message) }

// Log records one message at the given level. Side effect only; a log call
// must never abort the caller's primary task, so every failure path here
// degrades silently.
func (c *Client) Log(level, message string) {
	defer func() {
		_ = recover()
	}()

	record := core.NewRecord(core.NormalizeLevel(level), message, resolveCaller())
	c.totalLogged.Add(1)

	c.mu.Lock()
	if !c.closed {
		if c.queue.PushBack(record) {
			c.totalEvicted.Add(1)
		}
		// Connection attempt ended without a pending retry; start one.
		if c.state == stateDisconnected && c.reconnectTimer == nil {
			c.scheduleReconnectLocked(0)
		}
	}
	c.mu.Unlock()

	c.notifySender()
	c.mirror(record)
}

// Close tears the client down: cancels any pending reconnect, makes one
// final best-effort delivery attempt, closes the connection, clears the
// buffer, and deregisters. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	// Stop the sender before the final flush so there is exactly one writer
	// on the connection at a time.
	close(c.done)
	c.sendWg.Wait()

	c.mu.Lock()
	if c.state == stateConnected {
		c.finalDrainLocked()
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = stateDisconnected
	c.queue.Clear()
	c.mu.Unlock()

	c.wg.Wait()
	c.registry.Unregister(c)
}

// GetStats returns a snapshot of client counters.
func (c *Client) GetStats() ClientStats {
	c.mu.Lock()
	connected := c.state == stateConnected
	pending := c.queue.Len()
	c.mu.Unlock()

	return ClientStats{
		Service:         c.config.Service,
		Connected:       connected,
		Pending:         pending,
		TotalLogged:     c.totalLogged.Load(),
		TotalSent:       c.totalSent.Load(),
		TotalEvicted:    c.totalEvicted.Load(),
		TotalReconnects: c.totalReconnects.Load(),
		AckErrors:       c.ackErrors.Load(),
	}
}

// connect performs one dial attempt and transitions the state machine.
// Runs outside the caller's goroutine; failures schedule a retry with
// exponential backoff.
func (c *Client) connect() {
	c.mu.Lock()
	if c.closed || c.state != stateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = stateConnecting
	c.reconnectTimer = nil
	c.mu.Unlock()

	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if err == nil {
			_ = conn.Close()
		}
		c.state = stateDisconnected
		return
	}

	if err != nil {
		c.state = stateDisconnected
		delay := c.reconnectDelay
		c.bumpBackoffLocked()
		c.scheduleReconnectLocked(delay)
		if c.logger != nil {
			c.logger.Debug("msg", "Collector unreachable, buffering",
				"component", "log_client",
				"service", c.config.Service,
				"address", c.config.Address,
				"retry_delay", delay,
				"error", err)
		}
		return
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	c.conn = conn
	c.state = stateConnected
	c.reconnectDelay = c.config.ReconnectDelay
	c.totalReconnects.Add(1)

	c.wg.Add(1)
	go c.readAcks(conn)

	c.notifySender()
}

// notifySender wakes the sender goroutine without blocking.
func (c *Client) notifySender() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// sendLoop is the single owner of connection writes. It drains whenever a
// record is enqueued or a connection comes up, keeping Log callers off the
// network entirely.
func (c *Client) sendLoop() {
	defer c.sendWg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		c.drain()
	}
}

// drain flushes the queue in FIFO order over the live connection. The mutex
// is released around each write so concurrent Log calls never wait on the
// network. The drain stops at the first record that fails to send: that
// record is pushed back to the front and the connection is closed to force
// a clean reconnect cycle instead of retrying on a half-broken channel.
func (c *Client) drain() {
	for {
		c.mu.Lock()
		if c.closed || c.state != stateConnected {
			c.mu.Unlock()
			return
		}
		record, ok := c.queue.PopFront()
		if !ok {
			c.mu.Unlock()
			return
		}
		conn := c.conn
		c.mu.Unlock()

		if err := c.send(conn, record); err != nil {
			c.mu.Lock()
			if c.queue.PushFront(record) {
				c.totalEvicted.Add(1)
			}
			if c.conn == conn {
				c.dropConnectionLocked(err)
			}
			c.mu.Unlock()
			return
		}
		c.totalSent.Add(1)
	}
}

// finalDrainLocked is the teardown flush: best effort, no retry, no
// reconnect scheduling. Only runs after the sender goroutine has stopped.
func (c *Client) finalDrainLocked() {
	for {
		record, ok := c.queue.PopFront()
		if !ok {
			return
		}
		if err := c.send(c.conn, record); err != nil {
			return
		}
		c.totalSent.Add(1)
	}
}

func (c *Client) send(conn net.Conn, record core.LogRecord) error {
	if conn == nil {
		return net.ErrClosed
	}
	frame, err := json.Marshal(core.NewEnvelope(c.config.Service, record))
	if err != nil {
		return err
	}
	frame = append(frame, '\n')

	if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// dropConnectionLocked closes the current connection and schedules a
// reconnect. Safe to call repeatedly; only the first call per connection
// has any effect.
func (c *Client) dropConnectionLocked(err error) {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.state == stateDisconnected {
		return
	}
	c.state = stateDisconnected

	if c.closed {
		return
	}
	delay := c.reconnectDelay
	c.bumpBackoffLocked()
	c.scheduleReconnectLocked(delay)

	if c.logger != nil {
		c.logger.Debug("msg", "Lost collector connection",
			"component", "log_client",
			"service", c.config.Service,
			"retry_delay", delay,
			"error", err)
	}
}

func (c *Client) bumpBackoffLocked() {
	c.reconnectDelay *= 2
	if c.reconnectDelay > c.config.MaxReconnectDelay {
		c.reconnectDelay = c.config.MaxReconnectDelay
	}
}

func (c *Client) scheduleReconnectLocked(delay time.Duration) {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, c.connect)
}

// readAcks consumes server reply frames. The reads double as connection
// monitoring: a read error means the connection is gone and triggers the
// reconnect cycle.
func (c *Client) readAcks(conn net.Conn) {
	defer c.wg.Done()

	decoder := json.NewDecoder(conn)
	for {
		var ack core.Ack
		if err := decoder.Decode(&ack); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.dropConnectionLocked(err)
			}
			c.mu.Unlock()
			return
		}
		if ack.Status != core.StatusOK {
			c.ackErrors.Add(1)
			if c.logger != nil {
				c.logger.Warn("msg", "Collector rejected log entry",
					"component", "log_client",
					"service", c.config.Service,
					"reason", ack.Reason)
			}
		}
	}
}

// mirror writes the record to the console when enabled and at or above the
// configured minimum level.
func (c *Client) mirror(record core.LogRecord) {
	if !c.config.EnableConsole {
		return
	}
	if !core.LevelAtLeast(record.Level, c.config.ConsoleMinLevel) {
		return
	}
	_, _ = io.WriteString(c.config.ConsoleWriter, record.FormatLine(c.config.Service)+"\n")
}
