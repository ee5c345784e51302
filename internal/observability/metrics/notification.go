// Package metrics provides the Prometheus collectors used across mhews.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded on mhews_notifications_total.
const (
	OutcomeSent         = "sent"
	OutcomeCooldown     = "cooldown"
	OutcomeNoRecipients = "no_recipients"
	OutcomeError        = "error"
)

// NotificationMetrics contains metrics for dispatches and gateway sends.
type NotificationMetrics struct {
	NotificationsTotal     *prometheus.CounterVec   // dispatches by hazard type and outcome
	GatewaySendDuration    *prometheus.HistogramVec // per-recipient send latency
	GatewayErrors          *prometheus.CounterVec   // failed sends by gateway and error category
	CircuitBreakerState    *prometheus.GaugeVec     // 0 closed, 1 half-open, 2 open
	ConsecutiveFailures    *prometheus.GaugeVec
	RateLimitedTotal       *prometheus.CounterVec
	DispatchActive         prometheus.Gauge
	LastSuccessfulDispatch *prometheus.GaugeVec
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhews_notifications_total",
			Help: "Notification dispatches by hazard type and outcome",
		},
		[]string{"hazard", "outcome"},
	)

	m.GatewaySendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhews_gateway_send_duration_seconds",
			Help:    "Time taken by the SMS gateway to accept one message",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"gateway", "status"},
	)

	m.GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhews_gateway_errors_total",
			Help: "Failed gateway sends by gateway and error category",
		},
		[]string{"gateway", "category"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mhews_gateway_circuit_breaker_state",
			Help: "Gateway circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"gateway"},
	)

	m.ConsecutiveFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mhews_gateway_consecutive_failures",
			Help: "Consecutive gateway failures",
		},
		[]string{"gateway"},
	)

	m.RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhews_gateway_rate_limited_total",
			Help: "Sends that waited on or were rejected by the outbound rate limiter",
		},
		[]string{"gateway"},
	)

	m.DispatchActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mhews_dispatch_active",
		Help: "Dispatches currently in progress",
	})

	m.LastSuccessfulDispatch = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mhews_last_successful_dispatch_timestamp_seconds",
			Help: "Unix time of the last successful dispatch per hazard type",
		},
		[]string{"hazard"},
	)
}

// RecordDispatch counts one dispatch outcome.
func (m *NotificationMetrics) RecordDispatch(hazard, outcome string) {
	m.NotificationsTotal.WithLabelValues(hazard, outcome).Inc()
	if outcome == OutcomeSent {
		m.LastSuccessfulDispatch.WithLabelValues(hazard).Set(float64(time.Now().Unix()))
	}
}

// RecordSend observes one gateway send.
func (m *NotificationMetrics) RecordSend(gateway, status string, duration time.Duration) {
	m.GatewaySendDuration.WithLabelValues(gateway, status).Observe(duration.Seconds())
}

// RecordGatewayError counts a failed send.
func (m *NotificationMetrics) RecordGatewayError(gateway, category string) {
	m.GatewayErrors.WithLabelValues(gateway, category).Inc()
}

// UpdateCircuitBreakerState sets the breaker state gauge.
func (m *NotificationMetrics) UpdateCircuitBreakerState(gateway string, state int) {
	m.CircuitBreakerState.WithLabelValues(gateway).Set(float64(state))
}

// SetConsecutiveFailures sets the failure streak gauge.
func (m *NotificationMetrics) SetConsecutiveFailures(gateway string, n int) {
	m.ConsecutiveFailures.WithLabelValues(gateway).Set(float64(n))
}

// RecordRateLimited counts a rate limited send.
func (m *NotificationMetrics) RecordRateLimited(gateway string) {
	m.RateLimitedTotal.WithLabelValues(gateway).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.NotificationsTotal.Describe(ch)
	m.GatewaySendDuration.Describe(ch)
	m.GatewayErrors.Describe(ch)
	m.CircuitBreakerState.Describe(ch)
	m.ConsecutiveFailures.Describe(ch)
	m.RateLimitedTotal.Describe(ch)
	m.DispatchActive.Describe(ch)
	m.LastSuccessfulDispatch.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.NotificationsTotal.Collect(ch)
	m.GatewaySendDuration.Collect(ch)
	m.GatewayErrors.Collect(ch)
	m.CircuitBreakerState.Collect(ch)
	m.ConsecutiveFailures.Collect(ch)
	m.RateLimitedTotal.Collect(ch)
	m.DispatchActive.Collect(ch)
	m.LastSuccessfulDispatch.Collect(ch)
}
