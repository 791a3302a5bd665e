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
	"github.com/brojonat/ledgersync/service/reachability"
	"github.com/brojonat/ledgersync/service/server"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/brojonat/ledgersync/service/storage"
	"github.com/brojonat/ledgersync/service/transactions"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting sync agent",
		"addr", cfg.AgentAddr,
		"device_id", cfg.DeviceID,
		"api_base_url", cfg.APIBaseURL,
		"queue_backend", cfg.QueueBackend,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

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
		logger.Info("signed in from API_TOKEN", "session", sess.String())
	} else {
		logger.Warn("no API_TOKEN configured, sweeps are skipped until a session is started")
	}

	// Remote finance API client
	apiClient := client.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, sess, logger)

	// Offline queue engine, restored from the previous run
	engine := queue.NewEngine(store, apiClient, sess, metricsCollector, logger)
	engine.LoadFromStorage(ctx)

	// Reachability signal
	prober := reachability.NewProber(cfg.ProbeURL, cfg.ProbeInterval, nil, metricsCollector, logger)

	// Write coordinator, reconciled with every synced write
	coordinator := transactions.NewCoordinator(prober, engine, apiClient, metricsCollector, logger)
	engine.Subscribe(coordinator)

	// Synced-event publishing (optional)
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		engine.Subscribe(natspkg.NewSyncObserver(publisher, logger))
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Info("NATS_URL not set, synced events will not be published")
	}

	// Logout resets every per-user component
	sess.Register("queue", engine.ResetAll)
	sess.Register("transactions", coordinator.Reset)

	// Sync triggers: reconnect, startup, and a periodic sweep
	prober.OnOnline(func(ctx context.Context) {
		go engine.Sync(ctx)
	})
	go prober.Run(ctx)

	if cfg.SyncOnStart {
		go engine.Sync(ctx)
	}
	if cfg.SyncInterval > 0 {
		go runSyncLoop(ctx, engine, cfg.SyncInterval, logger)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.AgentAddr, coordinator, engine, sess, metricsCollector, logger)

	logger.Info("agent initialized, all dependencies ready",
		"queued_writes", engine.Count(),
		"probe_url", cfg.ProbeURL,
		"sync_interval", cfg.SyncInterval,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("agent shutdown complete", "queued_writes", engine.Count())
	}
}

// runSyncLoop sweeps the queue every interval until ctx is done. A sweep
// that is already running turns the tick into a no-op.
func runSyncLoop(ctx context.Context, engine *queue.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := engine.Sync(ctx)
			if result.Attempted > 0 {
				logger.Debug("periodic sync finished", "succeeded", result.Succeeded, "failed", result.Failed)
			}
		}
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

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
