// Package main provides the worker application entry point.
// The worker consumes feedback jobs from Redpanda, calls the generation
// service and stores the parsed coaching feedback.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/adapter/queue/redpanda"
	"github.com/castmate/castmate-ai/internal/adapter/repo/postgres"
	"github.com/castmate/castmate-ai/internal/app"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/usecase"
)

// metricsAddr serves /metrics for Prometheus; the worker has no other HTTP surface.
const metricsAddr = ":9090"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(ropts)
	defer func() { _ = rdb.Close() }()

	generator, err := app.BuildGenerator(cfg, rdb)
	if err != nil {
		slog.Error("generator init failed", slog.Any("error", err))
		os.Exit(1)
	}
	prompts, err := config.LoadPromptCatalog(cfg.PromptsDir)
	if err != nil {
		slog.Error("prompt catalog load failed", slog.String("dir", cfg.PromptsDir), slog.Any("error", err))
		os.Exit(1)
	}

	// Completion events use a transactional id distinct from the API producer.
	events, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, "castmate-worker-producer")
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer events.Close()

	jobRepo := postgres.NewJobRepo(pool)
	feedbackSvc := usecase.FeedbackService{
		Jobs:      jobRepo,
		Clips:     postgres.NewClipRepo(pool),
		Results:   postgres.NewFeedbackRepo(pool),
		Events:    events,
		AI:        generator,
		Prompt:    prompts.TrainingFeedback,
		MaxTokens: cfg.GeminiMaxOutputTokens,
	}

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, feedbackSvc, cfg.GetRetryConfig(), cfg.ConsumerMaxConcurrency)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.DataRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
	}

	if sweeper := app.NewStuckJobSweeper(jobRepo, cfg.JobStaleAfter, 0); sweeper != nil {
		go sweeper.Run(ctx)
	}

	slog.Info("starting redpanda consumer", slog.String("group", cfg.ConsumerGroup), slog.Int("workers", cfg.ConsumerMaxConcurrency))
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker error", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	slog.Info("worker stopped")
}
