// FILE: src/internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/timcash/code-cad/src/internal/logclient"
	"github.com/timcash/code-cad/src/internal/procutil"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// Config holds session manager settings. Zero values fall back to defaults.
type Config struct {
	// DebugPort is the browser's remote debugging port.
	DebugPort int

	// ForceFresh skips attaching to an already-running browser and always
	// launches a new instance.
	ForceFresh bool

	// VerifyAttach opens and closes a throwaway page after attaching to an
	// existing browser to prove the connection actually works.
	VerifyAttach bool

	Headless    bool
	UserDataDir string

	ViewportWidth  int
	ViewportHeight int

	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
	PollInterval    time.Duration

	// ExecutablePaths overrides the per-OS probe list.
	ExecutablePaths []string
}

// SessionManager owns the lifecycle of one controllable browser: it reuses
// an already-running debuggable instance when possible, launches a fresh
// one otherwise, hands test code a page with console monitoring attached,
// and tears down symmetrically. Start and Stop are idempotent; a process
// the manager merely attached to is never terminated.
type SessionManager struct {
	config     Config
	logger     *log.Logger
	logClient  *logclient.Client
	terminator procutil.Terminator
	probe      *fasthttp.Client

	// attach performs one connection attempt; indirection so lifecycle
	// tests can run the launch flow without a real browser.
	attach func(verify bool) error

	mu          sync.Mutex
	browser     *rod.Browser
	cancel      context.CancelFunc
	process     *os.Process
	ownsProcess bool
	monitored   map[proto.TargetTargetID]bool
}

// New creates a session manager. Console events from pages handed out by
// Page are forwarded to logClient (may be nil to disable bridging).
func New(cfg Config, logClient *logclient.Client, logger *log.Logger) *SessionManager {
	if cfg.DebugPort <= 0 {
		cfg.DebugPort = 9222
	}
	if cfg.UserDataDir == "" {
		cfg.UserDataDir = filepath.Join(os.TempDir(), "code-cad-browser-profile")
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	m := &SessionManager{
		config:     cfg,
		logger:     logger,
		logClient:  logClient,
		terminator: procutil.Native(),
		probe:      &fasthttp.Client{},
		monitored:  make(map[proto.TargetTargetID]bool),
	}
	m.attach = m.attachLocked
	return m
}

// OwnsProcess reports whether the manager spawned the underlying browser
// (and is therefore responsible for terminating it).
func (m *SessionManager) OwnsProcess() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownsProcess
}

// Connected reports whether an automation connection is live.
func (m *SessionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Start attaches to an already-listening debug endpoint or launches a
// fresh browser. Idempotent: if already connected it returns immediately.
func (m *SessionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return nil
	}

	if !m.config.ForceFresh {
		if err := m.attach(m.config.VerifyAttach); err == nil {
			m.ownsProcess = false
			m.logger.Info("msg", "Attached to existing browser",
				"component", "browser_session",
				"debug_port", m.config.DebugPort)
			return nil
		} else {
			m.logger.Debug("msg", "No attachable browser, launching fresh instance",
				"component", "browser_session",
				"debug_port", m.config.DebugPort,
				"error", err)
		}
	}

	return m.launchLocked()
}

// attachLocked connects to a browser already listening on the debug port.
// When verify is set the connection is proven end to end with a throwaway
// page: optional for plain attach, always on for the launch path.
func (m *SessionManager) attachLocked(verify bool) error {
	if !m.endpointUp() {
		return fmt.Errorf("debug endpoint 127.0.0.1:%d not reachable", m.config.DebugPort)
	}

	controlURL, err := launcher.ResolveURL(fmt.Sprintf("127.0.0.1:%d", m.config.DebugPort))
	if err != nil {
		return fmt.Errorf("resolve debug endpoint: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		cancel()
		return fmt.Errorf("connect to browser: %w", err)
	}

	if verify {
		if err := verifyConnection(browser); err != nil {
			cancel()
			return fmt.Errorf("verify browser connection: %w", err)
		}
	}

	m.browser = browser
	m.cancel = cancel
	m.monitored = make(map[proto.TargetTargetID]bool)
	return nil
}

// launchLocked kills stale instances, locates an executable, spawns it
// detached, and polls until the automation connection works.
func (m *SessionManager) launchLocked() error {
	for _, name := range processNames() {
		if err := m.terminator.KillByName(name, false); err != nil {
			m.logger.Debug("msg", "Stale browser cleanup failed",
				"component", "browser_session",
				"process", name,
				"error", err)
		}
	}

	bin, err := locateExecutable(m.config.ExecutablePaths)
	if err != nil {
		return err
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", m.config.DebugPort),
		"--user-data-dir=" + m.config.UserDataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-gpu",
	}
	if m.config.Headless {
		args = append(args, "--headless=new")
	}

	cmd := exec.Command(bin, args...)
	m.terminator.SetDetached(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn browser %s: %w", bin, err)
	}
	m.process = cmd.Process
	go func() {
		_ = cmd.Wait()
	}()

	m.logger.Info("msg", "Browser spawned",
		"component", "browser_session",
		"executable", bin,
		"pid", m.process.Pid,
		"debug_port", m.config.DebugPort,
		"headless", m.config.Headless)

	deadline := time.Now().Add(m.config.StartupTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		// A spawned browser is always proven with a throwaway page before
		// the launch counts as successful.
		if lastErr = m.attach(true); lastErr == nil {
			m.ownsProcess = true
			return nil
		}
		time.Sleep(m.config.PollInterval)
	}

	// Startup deadline exceeded: don't leave the half-started process
	// behind.
	_ = m.terminator.Terminate(m.process.Pid, true)
	m.process = nil
	return fmt.Errorf("browser failed to become controllable within %s: %w",
		m.config.StartupTimeout, lastErr)
}

// Page returns a usable page with console monitoring attached. The
// browser's first existing page is reused (with the viewport adjusted) to
// avoid tab accumulation across repeated runs; a new page is opened only
// when none exists.
func (m *SessionManager) Page() (*rod.Page, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()

	if browser == nil {
		return nil, fmt.Errorf("session manager not started")
	}

	var page *rod.Page
	pages, err := browser.Pages()
	if err == nil && len(pages) > 0 {
		page = pages.First()
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.config.ViewportWidth,
		Height:            m.config.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		m.logger.Warn("msg", "Failed to set viewport",
			"component", "browser_session",
			"error", err)
	}

	m.attachConsole(page)
	return page, nil
}

// Disconnect detaches the automation connection without terminating the
// underlying process. Safe to call whether or not the manager owns it.
func (m *SessionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *SessionManager) disconnectLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.browser = nil
	m.monitored = make(map[proto.TargetTargetID]bool)
}

// Stop tears the session down. An owned process is terminated (graceful
// first, forced as fallback) and the debug endpoint polled until it is
// confirmed unreachable; a merely-attached process is left running.
// Idempotent: a second call is a no-op. A later Start is a clean re-entry
// with no residual state.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil && m.process == nil {
		return
	}

	m.disconnectLocked()

	if m.ownsProcess && m.process != nil {
		pid := m.process.Pid
		_ = m.terminator.Terminate(pid, false)

		if !m.waitEndpointDown(m.config.ShutdownTimeout / 2) {
			_ = m.terminator.Terminate(pid, true)
			if !m.waitEndpointDown(m.config.ShutdownTimeout / 2) {
				// The process may already be gone with a lingering
				// socket; report and move on.
				m.logger.Warn("msg", "Debug endpoint still reachable after browser shutdown",
					"component", "browser_session",
					"pid", pid,
					"debug_port", m.config.DebugPort)
			}
		}
		m.logger.Info("msg", "Browser stopped",
			"component", "browser_session",
			"pid", pid)
	}

	m.process = nil
	m.ownsProcess = false
}

// endpointUp probes GET /json/version on the debug port.
func (m *SessionManager) endpointUp() bool {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("http://127.0.0.1:%d/json/version", m.config.DebugPort))
	if err := m.probe.DoTimeout(req, resp, time.Second); err != nil {
		return false
	}
	return resp.StatusCode() == fasthttp.StatusOK
}

func (m *SessionManager) waitEndpointDown(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !m.endpointUp() {
			return true
		}
		time.Sleep(m.config.PollInterval)
	}
	return !m.endpointUp()
}

// verifyConnection opens and closes a throwaway page to prove the
// automation channel is functional end to end.
func verifyConnection(browser *rod.Browser) error {
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return err
	}
	return page.Close()
}
