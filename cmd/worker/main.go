package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nguyenhaitrieu10/jobworker/internal/config"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
	"github.com/nguyenhaitrieu10/jobworker/internal/scheduler"
	"github.com/nguyenhaitrieu10/jobworker/internal/storage/postgres"
)

func main() {
	logger := newLogger()
	slog.SetDefault(logger)

	logger.Info("starting worker service")

	ctx := context.Background()

	workerCfg, err := config.LoadWorkerFromEnv(ctx)
	if err != nil {
		logger.Error("failed to load worker config", "error", err.Error())
		os.Exit(1)
	}

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		logger.Error("failed to load database config", "error", err.Error())
		os.Exit(1)
	}

	db, err := postgres.ConnectDB(ctx, dbCfg)
	if err != nil {
		logger.Error("database connection failed", "error", err.Error())
		os.Exit(1)
	}

	registry := processor.NewRegistry()
	if err := processor.RegisterBuiltins(registry, logger); err != nil {
		logger.Error("failed to register processors", "error", err.Error())
		os.Exit(1)
	}

	repo := postgres.NewJobRepository(db)

	sched, err := scheduler.New(workerCfg, repo, registry, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err.Error())
		os.Exit(1)
	}

	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("worker service running", "job_types", registry.Types())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerCfg.ShutdownGrace)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("worker service stopped")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
