// Package metrics provides Prometheus instrumentation for ledgercore.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts core ledger operations, partitioned by
	// operation name and outcome ("ok" or "error").
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_operations_total",
		Help: "Total number of ledger operations processed",
	}, []string{"op", "outcome"})

	// OperationDuration tracks per-operation latency, from dispatch submit
	// to result, in seconds.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgercore_operation_duration_seconds",
		Help:    "Ledger operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// ActiveAccounts tracks the number of accounts with an open lifetime.
	ActiveAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgercore_active_accounts",
		Help: "Number of accounts with an open lifetime",
	})

	// ScheduledPaymentsPending tracks the scheduler's non-terminal backlog.
	ScheduledPaymentsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgercore_scheduled_payments_pending",
		Help: "Number of scheduled payments not yet due or canceled",
	})

	// WebSocketClients tracks connected balance-event feed subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgercore_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgercore_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// DispatchQueueDepth tracks how many submitted operations are waiting
	// for a worker in the dispatch pool.
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgercore_dispatch_queue_depth",
		Help: "Number of ledger operations queued for a worker",
	})
)

// Handler exposes the Prometheus registry for scraping at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// recorder captures the response status an inner handler wrote, defaulting
// to 200 since a handler that never calls WriteHeader produced one.
type recorder struct {
	http.ResponseWriter
	code int
}

func (rec *recorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

// Middleware times every request and records it under HTTPRequestsTotal and
// HTTPRequestDuration, labeled by the chi route pattern rather than the raw
// path so that e.g. /accounts/{accountID}/deposit stays one series instead
// of one per account id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &recorder{ResponseWriter: w, code: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		label := routeLabel(r)
		HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(started).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(rec.code)).Inc()
	})
}

// routeLabel prefers the chi router's matched pattern (set once routing
// completes) and falls back to the literal path for requests chi never
// matched, such as 404s on unknown routes.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
