// Package metrics provides Prometheus instrumentation for validation runs.
// Metrics live on a private registry and are exported as a textfile for
// node_exporter style collection, since provchain has no HTTP surface.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zjrosen/provchain/internal/log"
)

// Metrics holds the validation collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Runs by mode ("batch", "incremental", "inspect") and outcome ("valid", "invalid", "failed")
	Runs *prometheus.CounterVec

	// Reference errors by type
	ReferenceErrors *prometheus.CounterVec

	// Warnings by type
	Warnings *prometheus.CounterVec

	// Documents loaded by kind
	DocumentsLoaded *prometheus.CounterVec

	// Full run latency by mode
	RunLatency *prometheus.HistogramVec

	// Decode cache lookups by result ("hit", "miss")
	CacheLookups *prometheus.CounterVec
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provchain_validation_runs_total",
			Help: "Total validation runs by mode and outcome",
		}, []string{"mode", "outcome"}),

		ReferenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provchain_reference_errors_total",
			Help: "Total reference errors reported by type",
		}, []string{"type"}),

		Warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provchain_reference_warnings_total",
			Help: "Total reference warnings reported by type",
		}, []string{"type"}),

		DocumentsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provchain_documents_loaded_total",
			Help: "Total documents decoded from disk by kind",
		}, []string{"kind"}),

		RunLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provchain_validation_duration_seconds",
			Help:    "Duration of validation runs including loading",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"mode"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provchain_decode_cache_lookups_total",
			Help: "Decode cache lookups by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records the outcome and duration of a run.
func (m *Metrics) ObserveRun(mode, outcome string, d time.Duration) {
	if m != nil {
		m.Runs.WithLabelValues(mode, outcome).Inc()
		m.RunLatency.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// AddReferenceErrors adds n errors of the given type.
func (m *Metrics) AddReferenceErrors(errType string, n int) {
	if m != nil && n > 0 {
		m.ReferenceErrors.WithLabelValues(errType).Add(float64(n))
	}
}

// AddWarnings adds n warnings of the given type.
func (m *Metrics) AddWarnings(warnType string, n int) {
	if m != nil && n > 0 {
		m.Warnings.WithLabelValues(warnType).Add(float64(n))
	}
}

// AddDocuments records n decoded documents of kind.
func (m *Metrics) AddDocuments(kind string, n int) {
	if m != nil && n > 0 {
		m.DocumentsLoaded.WithLabelValues(kind).Add(float64(n))
	}
}

// CacheHit records a decode cache hit or miss.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// An empty path or nil receiver is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	log.Debug(log.CatMetrics, "wrote metrics textfile", "path", path)
	return nil
}
