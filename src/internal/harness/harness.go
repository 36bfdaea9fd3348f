// FILE: src/internal/harness/harness.go
package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/timcash/code-cad/src/internal/browser"
	"github.com/timcash/code-cad/src/internal/logclient"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// Config holds endpoints of the live code-cad instance under test. The
// geometry backend and static frontend are opaque collaborators: the
// harness only needs a liveness check, a generation endpoint, and an
// origin to navigate to.
type Config struct {
	BackendURL  string
	FrontendURL string

	HealthTimeout  time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Harness drives end-to-end scenarios against a running application:
// backend readiness, parametric generation requests, and page-level
// verification through the browser session.
type Harness struct {
	config    Config
	client    *fasthttp.Client
	session   *browser.SessionManager
	logClient *logclient.Client
	logger    *log.Logger
}

func New(cfg Config, session *browser.SessionManager, logClient *logclient.Client, logger *log.Logger) *Harness {
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://127.0.0.1:8000"
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://127.0.0.1:3000"
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &Harness{
		config:    cfg,
		client:    &fasthttp.Client{},
		session:   session,
		logClient: logClient,
		logger:    logger,
	}
}

// WaitForBackend polls the backend's /health endpoint until it answers OK
// or the deadline passes.
func (h *Harness) WaitForBackend() error {
	return WaitFor("backend health check", func() (bool, error) {
		return h.healthOK(), nil
	}, h.config.HealthTimeout, h.config.PollInterval)
}

func (h *Harness) healthOK() bool {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.config.BackendURL + "/health")
	if err := h.client.DoTimeout(req, resp, 2*time.Second); err != nil {
		return false
	}
	return resp.StatusCode() == fasthttp.StatusOK
}

// Generate posts numeric design parameters to the backend's generation
// endpoint and returns the raw response body. The geometry semantics stay
// opaque to the harness.
func (h *Harness) Generate(params map[string]float64) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetRequestURI(h.config.BackendURL + "/api/generate")
	req.SetBody(body)

	if err := h.client.DoTimeout(req, resp, h.config.RequestTimeout); err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("generation request returned status %d", resp.StatusCode())
	}

	if h.logClient != nil {
		h.logClient.Info(fmt.Sprintf("generation request completed (%d bytes)", len(resp.Body())))
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

// OpenFrontend navigates the session's page to the frontend origin and
// waits for the load event.
func (h *Harness) OpenFrontend() (*rod.Page, error) {
	page, err := h.session.Page()
	if err != nil {
		return nil, err
	}
	if err := page.Navigate(h.config.FrontendURL); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", h.config.FrontendURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for %s to load: %w", h.config.FrontendURL, err)
	}
	if h.logger != nil {
		h.logger.Info("msg", "Frontend loaded",
			"component", "harness",
			"url", h.config.FrontendURL)
	}
	return page, nil
}

// Screenshot captures the full page as PNG and writes it to path.
func (h *Harness) Screenshot(page *rod.Page, path string) error {
	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// WaitFor polls cond at the given interval under a fixed deadline. The
// returned timeout error names the awaited condition; cond errors abort
// the wait immediately.
func WaitFor(desc string, cond func() (bool, error), timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond()
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", desc, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, desc)
		}
		time.Sleep(interval)
	}
}
