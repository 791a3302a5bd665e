package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the sync agent.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Offline queue metrics
	queueDepth             prometheus.Gauge
	queueEnqueuedTotal     prometheus.Counter
	queueStorageErrors     *prometheus.CounterVec
	queueRetryThresholdHit prometheus.Counter

	// Sync sweep metrics
	syncSweepsTotal    *prometheus.CounterVec
	syncSweepDuration  prometheus.Histogram
	syncItemsTotal     *prometheus.CounterVec
	syncReplayDuration *prometheus.HistogramVec

	// Write coordinator metrics
	writePathTotal          *prometheus.CounterVec
	placeholdersReconciled  *prometheus.CounterVec
	reachabilityOnline      prometheus.Gauge
	reachabilityTransitions *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgersync_queue_depth",
				Help: "Number of queued offline writes waiting to sync",
			},
		),
		queueEnqueuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgersync_queue_enqueued_total",
				Help: "Total number of writes diverted into the offline queue",
			},
		),
		queueStorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_queue_storage_errors_total",
				Help: "Durable queue storage failures by operation",
			},
			[]string{"operation"},
		),
		queueRetryThresholdHit: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgersync_queue_retry_threshold_exceeded_total",
				Help: "Failed replays of writes already at or above the retry warning threshold",
			},
		),

		syncSweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_sync_sweeps_total",
				Help: "Sync sweeps by outcome",
			},
			[]string{"outcome"},
		),
		syncSweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledgersync_sync_sweep_duration_seconds",
				Help:    "Duration of sync sweeps that reached the network",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		syncItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_sync_items_total",
				Help: "Queued writes replayed during sweeps by status",
			},
			[]string{"status"},
		),
		syncReplayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgersync_sync_replay_duration_seconds",
				Help:    "Duration of a single create plus confirm-fetch replay",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),

		writePathTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_write_path_total",
				Help: "Create-transaction requests by the path they took",
			},
			[]string{"path"},
		),
		placeholdersReconciled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_placeholders_reconciled_total",
				Help: "Synced writes matched against visible placeholders",
			},
			[]string{"result"},
		),
		reachabilityOnline: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgersync_reachability_online",
				Help: "1 when the last reachability probe succeeded, 0 otherwise",
			},
		),
		reachabilityTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgersync_reachability_transitions_total",
				Help: "Online/offline transitions observed by the prober",
			},
			[]string{"to"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Queue metric helpers

// SetQueueDepth records the current number of queued writes.
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// RecordEnqueue records a write diverted into the queue.
func (m *Metrics) RecordEnqueue() {
	m.queueEnqueuedTotal.Inc()
}

// RecordStorageError records a failed durable load, save or clear.
func (m *Metrics) RecordStorageError(operation string) {
	m.queueStorageErrors.WithLabelValues(operation).Inc()
}

// RecordRetryThresholdExceeded records a failure past the warning threshold.
func (m *Metrics) RecordRetryThresholdExceeded() {
	m.queueRetryThresholdHit.Inc()
}

// Sync metric helpers

// RecordSyncSweep records a sweep outcome. duration is only observed for
// sweeps that attempted network calls.
func (m *Metrics) RecordSyncSweep(outcome string, duration float64) {
	m.syncSweepsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.syncSweepDuration.Observe(duration)
	}
}

// RecordSyncItem records the replay of one queued write.
func (m *Metrics) RecordSyncItem(status string, duration float64) {
	m.syncItemsTotal.WithLabelValues(status).Inc()
	m.syncReplayDuration.WithLabelValues(status).Observe(duration)
}

// Coordinator metric helpers

// RecordWritePath records which path a create-transaction request took.
func (m *Metrics) RecordWritePath(path string) {
	m.writePathTotal.WithLabelValues(path).Inc()
}

// RecordPlaceholderReconciled records whether a synced write found its placeholder.
func (m *Metrics) RecordPlaceholderReconciled(result string) {
	m.placeholdersReconciled.WithLabelValues(result).Inc()
}

// RecordReachability records the probed reachability state.
func (m *Metrics) RecordReachability(online, changed bool) {
	to := "offline"
	if online {
		m.reachabilityOnline.Set(1)
		to = "online"
	} else {
		m.reachabilityOnline.Set(0)
	}
	if changed {
		m.reachabilityTransitions.WithLabelValues(to).Inc()
	}
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
