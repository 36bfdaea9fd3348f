// FILE: src/internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/timcash/code-cad/src/internal/core"
)

type Config struct {
	Logging   *LogConfig      `toml:"logging"`
	Collector CollectorConfig `toml:"collector"`
	Client    ClientConfig    `toml:"client"`
	Browser   BrowserConfig   `toml:"browser"`
	Harness   HarnessConfig   `toml:"harness"`
}

// CollectorConfig configures the log collector daemon.
type CollectorConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Directory string `toml:"directory"`

	// SettleWaitMs is how long Stop waits for in-flight frames before
	// tearing the listener down.
	SettleWaitMs int `toml:"settle_wait_ms"`
}

// ClientConfig configures the in-process log client.
type ClientConfig struct {
	Service             string `toml:"service"`
	Address             string `toml:"address"`
	MaxBufferSize       int    `toml:"max_buffer_size"`
	ReconnectDelayMs    int    `toml:"reconnect_delay_ms"`
	MaxReconnectDelayMs int    `toml:"max_reconnect_delay_ms"`
	EnableConsole       bool   `toml:"enable_console"`
	ConsoleMinLevel     string `toml:"console_min_level"`
}

// BrowserConfig configures the browser session manager.
type BrowserConfig struct {
	DebugPort    int  `toml:"debug_port"`
	ForceFresh   bool `toml:"force_fresh"`
	VerifyAttach bool `toml:"verify_attach"`
	Headless     bool `toml:"headless"`

	UserDataDir    string `toml:"user_data_dir"`
	ViewportWidth  int    `toml:"viewport_width"`
	ViewportHeight int    `toml:"viewport_height"`

	StartupTimeoutSec  int `toml:"startup_timeout_sec"`
	ShutdownTimeoutSec int `toml:"shutdown_timeout_sec"`

	// ExecutablePaths overrides the per-OS browser probe list.
	ExecutablePaths []string `toml:"executable_paths"`
}

// HarnessConfig configures the end-to-end test harness.
type HarnessConfig struct {
	BackendURL  string `toml:"backend_url"`
	FrontendURL string `toml:"frontend_url"`

	HealthTimeoutSec  int `toml:"health_timeout_sec"`
	PollIntervalMs    int `toml:"poll_interval_ms"`
	RequestTimeoutSec int `toml:"request_timeout_sec"`
}

func defaults() *Config {
	host, port := splitDefaultAddr()
	return &Config{
		Logging: DefaultLogConfig(),
		Collector: CollectorConfig{
			Host:         host,
			Port:         port,
			Directory:    "./log",
			SettleWaitMs: 200,
		},
		Client: ClientConfig{
			Service:             "codecad",
			Address:             core.DefaultCollectorAddr,
			MaxBufferSize:       core.DefaultMaxBufferSize,
			ReconnectDelayMs:    1000,
			MaxReconnectDelayMs: 30000,
			EnableConsole:       true,
			ConsoleMinLevel:     core.LevelInfo,
		},
		Browser: BrowserConfig{
			DebugPort:          9222,
			VerifyAttach:       true,
			ViewportWidth:      1280,
			ViewportHeight:     800,
			StartupTimeoutSec:  30,
			ShutdownTimeoutSec: 10,
		},
		Harness: HarnessConfig{
			BackendURL:        "http://127.0.0.1:8000",
			FrontendURL:       "http://127.0.0.1:3000",
			HealthTimeoutSec:  30,
			PollIntervalMs:    250,
			RequestTimeoutSec: 60,
		},
	}
}

func splitDefaultAddr() (string, int) {
	// core.DefaultCollectorAddr is a compile-time constant in host:port
	// form; hardcoding the split keeps defaults allocation-free.
	return "127.0.0.1", 9776
}

func (c *Config) validate() error {
	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return err
		}
	}

	if c.Collector.Port < 1 || c.Collector.Port > 65535 {
		return fmt.Errorf("invalid collector port: %d", c.Collector.Port)
	}
	if c.Collector.Directory == "" {
		return fmt.Errorf("collector directory not specified")
	}
	if strings.Contains(c.Collector.Directory, "..") {
		return fmt.Errorf("collector directory contains traversal: %s", c.Collector.Directory)
	}

	if c.Client.Service == "" {
		return fmt.Errorf("client service name not specified")
	}
	if c.Client.MaxBufferSize < 1 {
		return fmt.Errorf("client buffer size must be positive: %d", c.Client.MaxBufferSize)
	}
	if c.Client.ConsoleMinLevel != "" && !core.ValidLevel(strings.ToUpper(c.Client.ConsoleMinLevel)) {
		return fmt.Errorf("invalid console min level: %s", c.Client.ConsoleMinLevel)
	}

	if c.Browser.DebugPort < 1 || c.Browser.DebugPort > 65535 {
		return fmt.Errorf("invalid browser debug port: %d", c.Browser.DebugPort)
	}
	if c.Browser.StartupTimeoutSec < 1 {
		return fmt.Errorf("browser startup timeout must be positive: %d", c.Browser.StartupTimeoutSec)
	}

	if c.Harness.BackendURL == "" {
		return fmt.Errorf("harness backend URL not specified")
	}
	if c.Harness.PollIntervalMs < 10 {
		return fmt.Errorf("harness poll interval too small: %d ms", c.Harness.PollIntervalMs)
	}

	return nil
}
