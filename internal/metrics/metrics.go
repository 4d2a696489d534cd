// Package metrics exposes Prometheus instrumentation for validation work.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/speclink/internal/models"
)

// Metrics holds the speclink collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	// Documents validated, by trigger: "event", "api", "full".
	Validations *prometheus.CounterVec

	// Findings reported, by issue kind.
	Issues *prometheus.CounterVec

	ValidateLatency prometheus.Histogram

	// Duration of a full-corpus validation pass.
	FullRunLatency prometheus.Histogram

	// File-change events handled, by kind.
	ChangeEvents *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, together
// with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speclink_validations_total",
			Help: "Total documents validated by trigger",
		}, []string{"trigger"}),

		Issues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speclink_validation_issues_total",
			Help: "Total validation findings reported by kind",
		}, []string{"kind"}),

		ValidateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speclink_validate_duration_seconds",
			Help:    "Duration of a single document validation including corpus reads",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		FullRunLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speclink_full_validation_duration_seconds",
			Help:    "Duration of a full workspace validation pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ChangeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speclink_change_events_total",
			Help: "Total file-change events handled by kind",
		}, []string{"kind"}),
	}
}

// ObserveValidation records one document validation and its findings.
func (m *Metrics) ObserveValidation(trigger string, issues []models.ValidationIssue, d time.Duration) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(trigger).Inc()
	m.ValidateLatency.Observe(d.Seconds())
	for _, is := range issues {
		m.Issues.WithLabelValues(string(is.Kind)).Inc()
	}
}

// ObserveFullRun records the duration of a full validation pass.
func (m *Metrics) ObserveFullRun(d time.Duration) {
	if m != nil {
		m.FullRunLatency.Observe(d.Seconds())
	}
}

// IncrementChangeEvent records a handled file-change event.
func (m *Metrics) IncrementChangeEvent(kind models.ChangeKind) {
	if m != nil {
		m.ChangeEvents.WithLabelValues(string(kind)).Inc()
	}
}

type storedCollector struct {
	desc  *prometheus.Desc
	count func() (map[models.IssueKind]int, error)
}

func (c storedCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c storedCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.count()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for kind, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), string(kind))
	}
}

// ObserveStoredDiagnostics exports the persisted diagnostics per issue kind.
// count is called on every scrape.
func (m *Metrics) ObserveStoredDiagnostics(count func() (map[models.IssueKind]int, error)) {
	if m == nil {
		return
	}
	m.registry.MustRegister(storedCollector{
		desc: prometheus.NewDesc("speclink_stored_diagnostics",
			"Diagnostics currently persisted by issue kind", []string{"kind"}, nil),
		count: count,
	})
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
