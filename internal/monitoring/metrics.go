package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for script sessions
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Evaluation metrics
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Query metrics
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	namespace string
}

// Snapshot holds totals gathered from the registry for log summaries
type Snapshot struct {
	Sessions    int64
	Evaluations int64
	Failures    int64
	Queries     int64
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "domsim"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		namespace: namespace,

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of open script sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of script sessions created",
			},
		),

		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of script evaluations by outcome",
			},
			[]string{"outcome"},
		),
		EvaluationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Script evaluation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		Queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of querySelector calls by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "querySelector duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
		),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionOpened records a new session
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionClosed records a closed session
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordEvaluation records one script evaluation
func (m *Metrics) RecordEvaluation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(duration.Seconds())
}

// RecordQuery records one querySelector call
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(duration.Seconds())
}

// GetSnapshot gathers the counters into running totals
func (m *Metrics) GetSnapshot() (Snapshot, error) {
	var snap Snapshot
	if m == nil {
		return snap, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap, fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := int64(metric.GetCounter().GetValue())
			switch family.GetName() {
			case m.namespace + "_sessions_total":
				snap.Sessions += value
			case m.namespace + "_evaluations_total":
				snap.Evaluations += value
				for _, label := range metric.GetLabel() {
					if label.GetName() == "outcome" && label.GetValue() != "ok" {
						snap.Failures += value
					}
				}
			case m.namespace + "_queries_total":
				snap.Queries += value
			}
		}
	}
	return snap, nil
}

// WriteTextfile writes every collector to path in the Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
