package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/server"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/store/sqlite"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/config"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelDebug)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("Failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg, store)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
