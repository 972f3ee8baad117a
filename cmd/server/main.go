// Command server starts the CastMate AI HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/castmate/castmate-ai/internal/adapter/ai/tokencount"
	httpserver "github.com/castmate/castmate-ai/internal/adapter/httpserver"
	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/adapter/queue/redpanda"
	"github.com/castmate/castmate-ai/internal/adapter/repo/postgres"
	"github.com/castmate/castmate-ai/internal/app"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
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

	producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, "castmate-api-producer")
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

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

	clipRepo := postgres.NewClipRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)
	feedbackRepo := postgres.NewFeedbackRepo(pool)

	clipSvc := usecase.NewClipService(clipRepo, cfg.MaxClipBytes())
	feedbackSvc := usecase.FeedbackService{Jobs: jobRepo, Clips: clipRepo, Queue: producer}
	resultSvc := usecase.NewResultService(jobRepo, feedbackRepo, cfg.JobStaleAfter)
	chatbotSvc := usecase.ChatbotService{
		AI:          generator,
		Prompt:      prompts.Chatbot,
		Counter:     tokencount.DefaultCounter,
		TokenBudget: cfg.ChatbotPromptTokenBudget,
		MaxTokens:   cfg.ChatbotMaxOutputTokens,
	}

	srv := httpserver.NewServer(cfg, clipSvc, feedbackSvc, resultSvc, chatbotSvc,
		app.BuildReadinessProbes(pool, rdb, producer)...)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("env", cfg.AppEnv))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
	}
}
