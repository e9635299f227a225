package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/accountly/webhook-dispatch/internal/config"
	"github.com/accountly/webhook-dispatch/internal/database"
	"github.com/accountly/webhook-dispatch/internal/dispatch"
	"github.com/accountly/webhook-dispatch/internal/handler"
	"github.com/accountly/webhook-dispatch/internal/logging"
	"github.com/accountly/webhook-dispatch/internal/metrics"
	"github.com/accountly/webhook-dispatch/internal/store"
	"github.com/accountly/webhook-dispatch/internal/worker"
)

func main() {
	withWorker := flag.Bool("worker", false, "also run the event stream consumer in-process")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("webhook-dispatch-api", cfg.LogLevel, cfg.AppEnv)
	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
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

	webhookH := handler.NewWebhookHandler(s)
	eventH := handler.NewEventHandler(dispatcher, rdb)
	deliveryH := handler.NewDeliveryHandler(dispatcher)

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("", webhookH.Create)
			webhooks.GET("", webhookH.List)
			webhooks.GET("/:id", webhookH.Get)
			webhooks.PATCH("/:id", webhookH.Update)
			webhooks.DELETE("/:id", webhookH.Delete)
			webhooks.GET("/:id/deliveries", deliveryH.List)
		}
		events := api.Group("/events")
		{
			events.POST("", eventH.Send)
			events.POST("/async", eventH.Enqueue)
		}
	}

	// Optionally consume the event stream in-process for local development
	if *withWorker {
		w := worker.New(dispatcher, rdb, cfg.WorkerConcurrency)
		if err := w.Start(ctx); err != nil {
			slog.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
		slog.Info("event consumer started", "concurrency", cfg.WorkerConcurrency)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("api server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("api server stopped")
}
