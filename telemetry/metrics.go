package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for both federations.
// A nil *Metrics or one built with Enabled=false records nothing.
type Metrics struct {
	config MetricsConfig

	providerCalls     *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	providerErrors    *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	providerHealthy   *prometheus.GaugeVec
	memoryOperations  *prometheus.CounterVec
	toolExecutions    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of backend invocations, including retries",
			},
			[]string{"domain", "provider", "operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of backend invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"domain", "provider", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of failed backend invocations",
			},
			[]string{"domain", "provider", "operation"},
		),
		providerFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fallbacks_total",
				Help:      "Total number of requests answered by a fallback backend",
			},
			[]string{"domain", "provider"},
		),
		providerHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_healthy",
				Help:      "Backend health as last observed (1=healthy, 0=unhealthy)",
			},
			[]string{"domain", "provider"},
		),
		memoryOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_operations_total",
				Help:      "Total number of memory federation operations by outcome",
			},
			[]string{"operation", "status"},
		),
		toolExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_executions_total",
				Help:      "Total number of tool bridge executions by outcome",
			},
			[]string{"tool", "status"},
		),
	}

	registry.MustRegister(
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.providerFallbacks,
		m.providerHealthy,
		m.memoryOperations,
		m.toolExecutions,
	)

	return m, nil
}

// RecordProviderCall records one backend invocation and its duration.
func (m *Metrics) RecordProviderCall(domain, provider, operation string, duration time.Duration) {
	if m == nil || m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(domain, provider, operation).Inc()
	m.providerDuration.WithLabelValues(domain, provider, operation).Observe(duration.Seconds())
}

// RecordProviderError records a failed backend invocation.
func (m *Metrics) RecordProviderError(domain, provider, operation string) {
	if m == nil || m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(domain, provider, operation).Inc()
}

// RecordFallback records a request served by a fallback backend.
func (m *Metrics) RecordFallback(domain, provider string) {
	if m == nil || m.providerFallbacks == nil {
		return
	}
	m.providerFallbacks.WithLabelValues(domain, provider).Inc()
}

// SetProviderHealthy publishes a backend's current health.
func (m *Metrics) SetProviderHealthy(domain, provider string, healthy bool) {
	if m == nil || m.providerHealthy == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.providerHealthy.WithLabelValues(domain, provider).Set(value)
}

// RecordMemoryOperation records a memory federation operation outcome.
func (m *Metrics) RecordMemoryOperation(operation, status string) {
	if m == nil || m.memoryOperations == nil {
		return
	}
	m.memoryOperations.WithLabelValues(operation, status).Inc()
}

// RecordToolExecution records a tool bridge execution outcome.
func (m *Metrics) RecordToolExecution(tool, status string) {
	if m == nil || m.toolExecutions == nil {
		return
	}
	m.toolExecutions.WithLabelValues(tool, status).Inc()
}

// Registry returns the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
