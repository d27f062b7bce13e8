package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/libbyreads/internal/shared"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	path := os.Getenv("LIBBYREADS_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	config, err := loadConfig(path)
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}

	level, _ := shared.ParseLevel(config.Log.Level)
	shared.SetLogLevel(logger, level)

	runner := NewRunner(RunnerOpts{Config: config, Logger: logger})

	app := &cli.Command{
		Name:     "libbyreads",
		Usage:    "Check which books on a Goodreads shelf your libraries can lend",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, os.Args)
	stop()
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// loadConfig reads path when it exists and falls back to the embedded defaults otherwise.
// Environment overrides are applied before validation.
func loadConfig(path string) (*shared.Config, error) {
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
