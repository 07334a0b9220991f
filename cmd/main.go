package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/mdash/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	configPath  = "config.toml"
	httpTimeout = 30 * time.Second
)

func main() {
	bootstrap := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			bootstrap.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := shared.LoadEnv(config); err != nil {
		bootstrap.Warn("failed to load environment", "error", err)
	}

	logger := shared.NewLoggerFromConfig(nil, config.Log)

	client := &http.Client{Timeout: httpTimeout}
	runner := NewRunner(servicesFromConfig(config, client, logger))

	app := &cli.Command{
		Name:     "mdash",
		Usage:    "Listening stats, music news and generated playlists from Apple Music",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err := app.Run(context.Background(), os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close record store", "error", cerr)
	}

	if err != nil {
		if isNotImplemented(err) {
			logger.Warn("not implemented", "error", err)
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
