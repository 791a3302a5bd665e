package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/ledgersync/client"
	"github.com/brojonat/ledgersync/service/config"
	"github.com/brojonat/ledgersync/service/metrics"
	natspkg "github.com/brojonat/ledgersync/service/nats"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/brojonat/ledgersync/service/storage"
	"github.com/brojonat/ledgersync/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The worker drains a device's queue on a Temporal schedule without the
// agent running. It reloads the queue from storage before every sweep, so
// it must not share a queue slot with a live agent.
func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"device_id", cfg.DeviceID,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	logger.Info("Prometheus metrics collector initialized")

	// Start metrics HTTP server
	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Open durable queue storage
	slot, closeSlot, err := storage.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open queue storage", "error", err)
		os.Exit(1)
	}
	defer closeSlot()
	store := storage.NewQueueStore(slot, cfg.QueueSlotKey, logger)

	// Credential signal
	sess := session.New(logger)
	if cfg.APIToken != "" {
		if err := sess.SignIn(cfg.APIToken); err != nil {
			logger.Error("API_TOKEN is not a valid token", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no API_TOKEN configured, every scheduled sweep will fail as not authenticated")
	}

	apiClient := client.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, sess, logger)
	engine := queue.NewEngine(store, apiClient, sess, metricsCollector, logger)

	// Initialize NATS publisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		engine.Subscribe(natspkg.NewSyncObserver(natsPublisher, logger))
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// One Temporal connection serves schedule management and the worker
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	if err := temporal.ApplySyncSchedule(ctx, temporalClient, cfg.DeviceID, cfg.SyncInterval, logger); err != nil {
		logger.Error("failed to apply sync schedule", "error", err)
		os.Exit(1)
	}

	// Initialize Temporal worker
	worker, err := temporal.NewWorker(temporalClient, temporal.WorkerConfig{
		Syncer: engine,
		Reload: true,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"temporal_host", cfg.TemporalHost,
		"temporal_namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"sync_interval", cfg.SyncInterval,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
