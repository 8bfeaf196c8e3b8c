// Package metrics provides Prometheus instrumentation for the realm engine.
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
	// BattlesTotal counts resolved battles, partitioned by outcome.
	BattlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_battles_total",
		Help: "Total number of battles resolved",
	}, []string{"outcome"})

	// EspionageTotal counts resolved espionage attempts by outcome.
	EspionageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_espionage_total",
		Help: "Total number of espionage attempts resolved",
	}, []string{"outcome"})

	// ActionLatency tracks combat resolution latency in seconds.
	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realm_action_latency_seconds",
		Help:    "Combat action resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// Rejections counts actions rejected before any mutation.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_action_rejections_total",
		Help: "Actions rejected by validation",
	}, []string{"action", "code"})

	// Rollbacks counts transactions rolled back on an unexpected fault.
	Rollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_tx_rollbacks_total",
		Help: "Transactions rolled back after a failure",
	}, []string{"action"})

	// BountiesClaimed counts bounties paid out to attackers.
	BountiesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realm_bounties_claimed_total",
		Help: "Bounties claimed by victorious attackers",
	})

	// TickDuration tracks how long one full tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "realm_tick_duration_seconds",
		Help:    "Turn processor tick duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	// TickProcessed counts entities advanced by the turn processor.
	TickProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_tick_processed_total",
		Help: "Actors and collectives advanced by ticks",
	}, []string{"kind"})

	// TickFailures counts batch items that failed and were skipped.
	TickFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_tick_failures_total",
		Help: "Tick batch items that failed",
	}, []string{"kind"})

	// InterestPaid accumulates treasury interest credited by ticks.
	InterestPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realm_treasury_interest_total",
		Help: "Cumulative treasury interest credited",
	})

	// EventsPublished counts domain events handed to publishers.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_events_published_total",
		Help: "Domain events published after commit",
	}, []string{"type"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realm_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps the path label low-cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
