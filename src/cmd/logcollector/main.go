// FILE: src/cmd/logcollector/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timcash/code-cad/src/internal/collector"
	"github.com/timcash/code-cad/src/internal/config"
	"github.com/timcash/code-cad/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	quiet := flag.Bool("quiet", false, "suppress all diagnostic output")
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if *configFile != "" {
		os.Setenv("CODECAD_CONFIG_FILE", *configFile)
	}

	cfg, err := config.LoadWithCLI(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := initializeLogger(cfg, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer shutdownLogger()

	logger.Info("msg", "Log collector starting",
		"version", version.String(),
		"config_file", *configFile,
		"host", cfg.Collector.Host,
		"port", cfg.Collector.Port,
		"directory", cfg.Collector.Directory)

	col := collector.New(collector.Config{
		Host:       cfg.Collector.Host,
		Port:       cfg.Collector.Port,
		Directory:  cfg.Collector.Directory,
		SettleWait: time.Duration(cfg.Collector.SettleWaitMs) * time.Millisecond,
	}, logger)

	if err := col.Start(); err != nil {
		logger.Error("msg", "Failed to start collector", "error", err)
		os.Exit(1)
	}

	logger.Info("msg", "Log collector ready",
		"address", col.Addr(),
		"run_stamp", col.RunStamp())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("msg", "Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		col.Stop()
		close(done)
	}()

	select {
	case <-done:
		stats := col.GetStats()
		logger.Info("msg", "Shutdown complete",
			"total_entries", stats.TotalEntries,
			"invalid_entries", stats.InvalidEntries)
	case <-shutdownCtx.Done():
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit")
		os.Exit(1)
	}
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			fmt.Fprintf(os.Stderr, "Logger shutdown error: %v\n", err)
		}
	}
}
