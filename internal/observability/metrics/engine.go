package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains metrics for reading ingestion, classification and alerts.
type EngineMetrics struct {
	ReadingsTotal          *prometheus.CounterVec // processed readings by risk label
	ClassificationDuration prometheus.Histogram
	ClassificationErrors   prometheus.Counter
	HazardCandidatesTotal  *prometheus.CounterVec // candidates by hazard type and tier
	ActiveAlerts           prometheus.Gauge
	AlertsCreatedTotal     *prometheus.CounterVec // by severity
}

// NewEngineMetrics creates and registers engine metrics.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{
		ReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhews_readings_total",
				Help: "Processed sensor readings by assigned risk label",
			},
			[]string{"risk"},
		),
		ClassificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mhews_classification_duration_seconds",
			Help:    "Time taken to classify one reading",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		ClassificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhews_classification_errors_total",
			Help: "Classifications that degraded to UNKNOWN",
		}),
		HazardCandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhews_hazard_candidates_total",
				Help: "Hazard candidates produced by threshold evaluation",
			},
			[]string{"hazard", "tier"},
		),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mhews_active_alerts",
			Help: "Alerts currently in Active status",
		}),
		AlertsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhews_alerts_created_total",
				Help: "Alerts created by severity",
			},
			[]string{"severity"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

// RecordReading counts a processed reading.
func (m *EngineMetrics) RecordReading(risk string) {
	m.ReadingsTotal.WithLabelValues(risk).Inc()
}

// RecordClassification observes a classification; failed ones are also counted.
func (m *EngineMetrics) RecordClassification(duration time.Duration, failed bool) {
	m.ClassificationDuration.Observe(duration.Seconds())
	if failed {
		m.ClassificationErrors.Inc()
	}
}

// RecordCandidate counts one hazard candidate.
func (m *EngineMetrics) RecordCandidate(hazard, tier string) {
	m.HazardCandidatesTotal.WithLabelValues(hazard, tier).Inc()
}

// SetActiveAlerts sets the active alert gauge.
func (m *EngineMetrics) SetActiveAlerts(n int64) {
	m.ActiveAlerts.Set(float64(n))
}

// RecordAlertCreated counts a new alert.
func (m *EngineMetrics) RecordAlertCreated(severity string) {
	m.AlertsCreatedTotal.WithLabelValues(severity).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ReadingsTotal.Describe(ch)
	m.ClassificationDuration.Describe(ch)
	m.ClassificationErrors.Describe(ch)
	m.HazardCandidatesTotal.Describe(ch)
	m.ActiveAlerts.Describe(ch)
	m.AlertsCreatedTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ReadingsTotal.Collect(ch)
	m.ClassificationDuration.Collect(ch)
	m.ClassificationErrors.Collect(ch)
	m.HazardCandidatesTotal.Collect(ch)
	m.ActiveAlerts.Collect(ch)
	m.AlertsCreatedTotal.Collect(ch)
}
