// Package simmetrics exposes Prometheus instrumentation for the simulation
// engine: trial/year throughput, operations executed, and conversion
// failures, alongside the /metrics HTTP handler that serves them.
package simmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler provides a Prometheus metrics endpoint.
type MetricsHandler struct {
	registry *prometheus.Registry
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		registry: prometheus.NewRegistry(),
	}
}

// NewMetricsHandlerWithRegistry creates a metrics handler with a custom
// registry.
func NewMetricsHandlerWithRegistry(registry *prometheus.Registry) *MetricsHandler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &MetricsHandler{
		registry: registry,
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}

// Registry returns the Prometheus registry.
func (h *MetricsHandler) Registry() *prometheus.Registry {
	return h.registry
}

// RegisterCollector registers a Prometheus collector.
func (h *MetricsHandler) RegisterCollector(collector prometheus.Collector) error {
	return h.registry.Register(collector)
}

// SimulationMetrics holds the collectors a running Engine reports against.
// Callers register it on a MetricsHandler's registry (or any registry) via
// RegisterCollector-style composition, then hand it to the engine to update
// during RunTrial/RunTrials.
type SimulationMetrics struct {
	TrialsTotal        prometheus.Counter
	YearsSimulated     prometheus.Counter
	OperationsExecuted prometheus.Counter
	ConversionErrors   prometheus.Counter
	TrialDuration      prometheus.Histogram
}

// NewSimulationMetrics builds the collector set and registers it on the
// given registry.
func NewSimulationMetrics(registry *prometheus.Registry) (*SimulationMetrics, error) {
	m := &SimulationMetrics{
		TrialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refrigerantsim",
			Name:      "trials_total",
			Help:      "Total number of simulation trials executed.",
		}),
		YearsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refrigerantsim",
			Name:      "years_simulated_total",
			Help:      "Total number of substance-years simulated across all trials.",
		}),
		OperationsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refrigerantsim",
			Name:      "operations_executed_total",
			Help:      "Total number of operations executed across all programs.",
		}),
		ConversionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refrigerantsim",
			Name:      "conversion_errors_total",
			Help:      "Total number of unit conversion failures encountered during a run.",
		}),
		TrialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "refrigerantsim",
			Name:      "trial_duration_seconds",
			Help:      "Wall-clock duration of a single simulation trial.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.TrialsTotal,
		m.YearsSimulated,
		m.OperationsExecuted,
		m.ConversionErrors,
		m.TrialDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
