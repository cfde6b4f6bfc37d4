package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/readerlab/reader-platform/internal/article"
	"github.com/readerlab/reader-platform/internal/config"
	"github.com/readerlab/reader-platform/internal/db"
	"github.com/readerlab/reader-platform/internal/engine"
	"github.com/readerlab/reader-platform/internal/store/rabbitmq"
	"github.com/readerlab/reader-platform/internal/store/redisstore"
	"github.com/readerlab/reader-platform/internal/vocab"
	"github.com/readerlab/reader-platform/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queue.Ping(ctx); err != nil {
		logger.Error("queue store ping failed", "error", err)
		os.Exit(1)
	}

	// Engine registry (route by configured provider).
	reg := engine.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (engine.Engine, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return engine.NewOllamaEngine(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (engine.Engine, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return engine.NewOpenRouterEngine(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	eng, err := reg.Get(ctx, cfg.EngineProvider, "")
	if err != nil {
		logger.Error("engine provider init failed", "provider", cfg.EngineProvider, "error", err)
		os.Exit(1)
	}

	repo := article.NewRepo(gdb)
	vocabRepo := vocab.NewRepo(gdb)
	gen := article.NewGenerationService(repo, queue, eng, vocabRepo, cfg.VocabularyHintLimit, logger)

	// Lifecycle events are observability; run without them if the broker is down.
	var events worker.EventPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		logger.Warn("rabbitmq unavailable, article events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	w := worker.New(queue, repo, gen, events, logger,
		time.Duration(cfg.DequeueTimeoutSeconds)*time.Second)

	logger.Info("starting worker",
		"provider", cfg.EngineProvider,
		"queue_prefix", cfg.QueuePrefix,
	)
	w.Run(ctx)
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
