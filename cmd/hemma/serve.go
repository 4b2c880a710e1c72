package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/hemma-hub/internal/app"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/config"
	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
)

type serveOptions struct {
	configPath string
	debug      bool
	upstream   string
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(opts *serveOptions) (*config.Config, string, error) {
	path := getConfigPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	if opts.upstream != "" {
		cfg.Upstream.URL = opts.upstream
		if err := cfg.Validate(); err != nil {
			return nil, path, fmt.Errorf("applying --upstream: %w", err)
		}
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}

// serve runs the hub until ctx is cancelled.
func serve(ctx context.Context, opts *serveOptions) error {
	log := logging.Default()
	log.Info("starting hemma hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", path)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	hub, err := app.New(ctx, cfg, log, version)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := hub.Close(); closeErr != nil {
			log.Error("error closing infrastructure", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := hub.Run(ctx); err != nil {
		return err
	}

	log.Info("hemma hub stopped")
	return nil
}
