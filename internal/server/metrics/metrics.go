// Package metrics holds the prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one server instance.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthOperations  *prometheus.CounterVec
	PasswordHash    prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Authentication operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		PasswordHash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_password_hash_seconds",
			Help:    "Time spent deriving password hashes.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}),
	}

	m.registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.AuthOperations,
		m.PasswordHash,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, latency time.Duration) {
	label := http.StatusText(status)
	m.RequestCount.WithLabelValues(method, path, label).Inc()
	m.RequestDuration.WithLabelValues(method, path, label).Observe(latency.Seconds())
}

// RecordAuth counts one session operation.
func (m *Metrics) RecordAuth(operation, outcome string) {
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// ObservePasswordHash records one password derivation.
func (m *Metrics) ObservePasswordHash(d time.Duration) {
	m.PasswordHash.Observe(d.Seconds())
}
