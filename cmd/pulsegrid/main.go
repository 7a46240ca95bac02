// Command pulsegrid runs the PulseGrid Core telemetry ingest daemon.
//
// Configuration is read from the path in PULSEGRID_CONFIG (default
// ./config.yaml); when no file exists the built-in defaults are used,
// which run the MQTT transport in stub mode. The process exits cleanly
// on SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsegrid/pulse-core/internal/app"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/config"
	"github.com/pulsegrid/pulse-core/internal/infrastructure/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// defaultConfigPath is used when PULSEGRID_CONFIG is not set.
const defaultConfigPath = "./config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pulsegrid: %v\n", err)
		os.Exit(1)
	}
}

// run wires the shell, starts it, and blocks until shutdown.
func run(ctx context.Context) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting pulsegrid core",
		"version", version,
		"site_id", cfg.Site.ID,
	)

	shell, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}

	if err := shell.Start(ctx); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shell.Stop()
	return nil
}

// loadConfig reads configuration from path, falling back to built-in
// defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config invalid: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// getConfigPath returns the config file path from the environment or
// the default.
func getConfigPath() string {
	if path := os.Getenv("PULSEGRID_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
