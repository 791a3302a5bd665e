package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/brojonat/ledgersync/service/queue"
	"github.com/brojonat/ledgersync/service/session"
	"github.com/brojonat/ledgersync/service/transactions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the local agent HTTP API. It exposes the write coordinator and
// the offline queue to a UI process on the same device.
type Server struct {
	addr        string
	coordinator *transactions.Coordinator
	engine      *queue.Engine
	session     *session.Session
	metrics     *metrics.Metrics
	logger      *slog.Logger
	server      *http.Server
}

// New creates a new agent server with the given dependencies.
// The metrics is optional - if nil, the /metrics endpoint is not mounted.
func New(addr string, coordinator *transactions.Coordinator, engine *queue.Engine, sess *session.Session, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:        addr,
		coordinator: coordinator,
		engine:      engine,
		session:     sess,
		metrics:     m,
		logger:      logger.With("component", "server"),
	}
}

// Handler builds the routed handler. Start serves it; tests mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Transaction routes
	route("POST /api/v1/transactions", "/api/v1/transactions", handleCreateTransaction(s.coordinator, s.logger))
	route("GET /api/v1/transactions", "/api/v1/transactions", handleListTransactions(s.coordinator, s.logger))

	// Offline queue routes
	route("GET /api/v1/queue", "/api/v1/queue", handleQueueStatus(s.engine, s.logger))
	route("POST /api/v1/queue/sync", "/api/v1/queue/sync", handleSyncQueue(s.engine, s.logger))
	route("DELETE /api/v1/queue/{id}", "/api/v1/queue/{id}", handleDropQueued(s.engine, s.coordinator, s.logger))

	// Session routes
	route("POST /api/v1/session", "/api/v1/session", handleSignIn(s.session, s.logger))
	route("POST /api/v1/session/logout", "/api/v1/session/logout", handleLogout(s.session, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// a manual sync runs a whole sweep before responding
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
