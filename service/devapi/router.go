package devapi

import (
	"net/http"

	"github.com/brojonat/ledgersync/service/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the handler's routes. If metrics is nil, requests are
// not instrumented and /metrics is not mounted.
func NewRouter(h *Handler, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	if m != nil {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(h.requireBearer)
	apiV1.Handle("/transactions",
		metrics.HTTPMetricsMiddleware(m, "/api/v1/transactions")(http.HandlerFunc(h.CreateTransaction))).Methods("POST")
	apiV1.Handle("/transactions/{id}",
		metrics.HTTPMetricsMiddleware(m, "/api/v1/transactions/{id}")(http.HandlerFunc(h.GetTransaction))).Methods("GET")

	return r
}
