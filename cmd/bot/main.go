package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahlev/Parlaybot/internal/app"
	"github.com/ahlev/Parlaybot/internal/config"
	"github.com/ahlev/Parlaybot/internal/observability"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With("service", cfg.ServiceName)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("shutdown uptrace", "error", err)
		}
	}()

	stopProfiling, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}
	defer func() {
		if err := stopProfiling(); err != nil {
			logger.Warn("stop pyroscope", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		return 1
	}

	logger.Info("parlaybot starting",
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"discord", cfg.DiscordEnabled,
		"http", cfg.HTTPEnabled,
		"weekly_reset", cfg.WeeklyResetEnabled,
	)
	if err := a.Run(ctx); err != nil {
		logger.Error("parlaybot failed", "error", err)
		return 1
	}
	return 0
}
