package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/accountly/webhook-dispatch/internal/config"
	"github.com/accountly/webhook-dispatch/internal/database"
	"github.com/accountly/webhook-dispatch/internal/dispatch"
	"github.com/accountly/webhook-dispatch/internal/logging"
	"github.com/accountly/webhook-dispatch/internal/metrics"
	"github.com/accountly/webhook-dispatch/internal/store"
	"github.com/accountly/webhook-dispatch/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("webhook-dispatch-worker", cfg.LogLevel, cfg.AppEnv)
	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to postgres")

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to parse redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to redis")

	s := store.New(pool)
	dispatcher := dispatch.New(s.Webhooks, s.Deliveries, dispatch.Config{
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.DeliveryTimeout,
		MaxConcurrent:  cfg.MaxConcurrentDeliveries,
	})

	w := worker.New(dispatcher, rdb, cfg.WorkerConcurrency)
	if err := w.Start(ctx); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	slog.Info("event consumer started", "concurrency", cfg.WorkerConcurrency)

	// Health and metrics endpoint for liveness probes
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	healthMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	healthSrv := &http.Server{
		Addr:    ":8081",
		Handler: healthMux,
	}

	go func() {
		slog.Info("worker health server listening", "port", "8081")
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	slog.Info("worker stopped")
}
