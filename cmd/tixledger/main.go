package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/tix-ledger/docs"
	"github.com/kirinyoku/tix-ledger/internal/app"
	"github.com/kirinyoku/tix-ledger/internal/config"
	"github.com/spf13/pflag"
)

// @title TixLedger API
// @version 1.0
// @description Event registry and ticket ledger.
// @host localhost:8080
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tixledger:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile  string
		storage  string
		logLevel string
	)

	flagSet := pflag.NewFlagSet("tixledger", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	flagSet.StringVar(&storage, "storage", "", "storage driver: memory, bolt, postgres, redis or mongo (overrides STORAGE_DRIVER)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}

	cfg, err := config.New(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if storage != "" {
		cfg.Storage.Driver = storage
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		return err
	}

	return nil
}
