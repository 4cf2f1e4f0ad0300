package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authentication operations.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	failuresTotal   *prometheus.CounterVec
	registerer      prometheus.Registerer
}

// NewMetrics creates a new Metrics instance registered with the default
// registerer, so the metrics appear on the /metrics endpoint.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Metrics instance with a custom
// registerer. Tests use a private registry.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tenantgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Total number of authentication attempts",
		},
		[]string{"provider", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "request_duration_seconds",
			Help:      "Authentication attempt duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"provider"},
	)

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of failed authentication attempts",
		},
		[]string{"provider", "reason"},
	)

	// Register ignoring duplicates; descriptors are identical when
	// re-registered in tests.
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.failuresTotal} {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordRequest records an authentication attempt.
func (m *Metrics) RecordRequest(provider, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(provider, status).Inc()
	m.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordFailure records a failed authentication attempt.
func (m *Metrics) RecordFailure(provider, reason string) {
	m.failuresTotal.WithLabelValues(provider, reason).Inc()
}
