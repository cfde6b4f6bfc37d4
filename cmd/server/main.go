package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/readerlab/reader-platform/internal/config"
	"github.com/readerlab/reader-platform/internal/db"
	"github.com/readerlab/reader-platform/internal/httpapi"
	"github.com/readerlab/reader-platform/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	logger := setupLogger(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}

	queue := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		cfg.QueuePrefix, time.Duration(cfg.StatusTTLHours)*time.Hour)
	defer queue.Close()

	r := httpapi.NewRouter(gdb, cfg, queue, logger)

	logger.Info("starting server", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
