package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nguyenhaitrieu10/jobworker/internal/job"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
	"github.com/nguyenhaitrieu10/jobworker/internal/storage/postgres"
	"github.com/nguyenhaitrieu10/jobworker/middleware"
	"github.com/nguyenhaitrieu10/jobworker/migrations"
)

func main() {
	logger := newLogger()
	slog.SetDefault(logger)

	logger.Info("starting api service")

	ctx := context.Background()

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

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to unwrap sql.DB", "error", err.Error())
		os.Exit(1)
	}
	if err := migrations.Up(sqlDB); err != nil {
		logger.Error("migrations failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// The API only needs the registry for job type validation and default
	// retry policies; no processor runs in this process.
	registry := processor.NewRegistry()
	if err := processor.RegisterBuiltins(registry, logger); err != nil {
		logger.Error("failed to register processors", "error", err.Error())
		os.Exit(1)
	}

	repo := postgres.NewJobRepository(db)
	service := job.NewJobService(repo, registry)
	handler := job.NewJobHandler(service)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	handler.RegisterRoutes(router.Group("/api/v1"))

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Info("api listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
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
