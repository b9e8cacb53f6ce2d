// Package observability holds the Prometheus metrics for PassVault.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors, registered on a custom registry
// instead of the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Breach corpus lookups by outcome: "exposed", "clean", "unavailable".
	BreachLookupsTotal *prometheus.CounterVec

	// Vault operations by kind and status.
	VaultOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics with all collectors registered on a fresh
// prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passvault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "passvault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method"}),

		BreachLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passvault",
			Subsystem: "breach",
			Name:      "lookups_total",
			Help:      "Breach corpus lookups by outcome.",
		}, []string{"outcome"}),

		VaultOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passvault",
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Vault operations by kind and status.",
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BreachLookupsTotal,
		m.VaultOperationsTotal,
	)
	return m
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request counts and durations. A nil Metrics
// disables instrumentation.
func HTTPMetricsMiddleware(m *Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
