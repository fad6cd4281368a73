package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/doowops/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("DOOWOPS_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, shared.ErrMissingConfig) {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
		config = shared.DefaultConfig()
	}
	if err := config.ApplyEnv(".env"); err != nil {
		logger.Fatalf("failed to apply environment: %v", err)
	}
	if err := config.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	level, _ := shared.ParseLogLevel(config.Log.Level)
	shared.SetLogLevel(logger, level)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "doowops",
		Usage:    "A two-player song pick game on Spotify playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
