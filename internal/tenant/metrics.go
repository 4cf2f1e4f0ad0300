package tenant

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultMetricsNamespace = "tenantgate"
	metricsSubsystem        = "tenant"

	decisionAllowed = "allowed"
	decisionDenied  = "denied"
)

// Metrics collects tenant gate and membership cache metrics.
type Metrics struct {
	cacheLookupsTotal *prometheus.CounterVec
	decisionsTotal    *prometheus.CounterVec
}

// NewMetrics creates tenant metrics registered on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates tenant metrics on the given registerer.
func NewMetricsWithRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}

	m := &Metrics{
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "cache_lookups_total",
				Help:      "Membership cache lookups by result.",
			},
			[]string{"result"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: metricsSubsystem,
				Name:      "decisions_total",
				Help:      "Tenant access decisions by outcome.",
			},
			[]string{"decision"},
		),
	}

	reg.MustRegister(m.cacheLookupsTotal, m.decisionsTotal)
	return m
}

// RecordCacheLookup counts one membership cache lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordDecision counts one tenant access decision.
func (m *Metrics) RecordDecision(decision string) {
	m.decisionsTotal.WithLabelValues(decision).Inc()
}
