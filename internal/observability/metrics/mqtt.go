package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains metrics for the sensor ingest subscriber.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesReceived  prometheus.Counter
	Errors            *prometheus.CounterVec // by stage: decode, process
	LastConnectTime   prometheus.Gauge
	MessageSize       prometheus.Histogram
	ReconnectAttempts prometheus.Counter
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mhews_mqtt_connection_status",
			Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhews_mqtt_messages_received_total",
			Help: "Sensor messages received over MQTT",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mhews_mqtt_errors_total",
			Help: "MQTT message handling errors by stage",
		}, []string{"stage"}),
		LastConnectTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mhews_mqtt_last_connect_time_seconds",
			Help: "Timestamp of the last successful MQTT connection",
		}),
		MessageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mhews_mqtt_message_size_bytes",
			Help:    "Size of received MQTT messages in bytes",
			Buckets: prometheus.ExponentialBuckets(32, 2, 10),
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhews_mqtt_reconnect_attempts_total",
			Help: "Connection attempts made by the subscriber's reconnect loop",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus updates the connection gauge and last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.Set(float64(time.Now().Unix()))
		return
	}
	m.ConnectionStatus.Set(0)
}

// RecordMessage counts a received message.
func (m *MQTTMetrics) RecordMessage(size int) {
	m.MessagesReceived.Inc()
	m.MessageSize.Observe(float64(size))
}

// RecordError counts an error at the given stage.
func (m *MQTTMetrics) RecordError(stage string) {
	m.Errors.WithLabelValues(stage).Inc()
}

// RecordReconnectAttempt counts one reconnect attempt.
func (m *MQTTMetrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ConnectionStatus.Describe(ch)
	m.MessagesReceived.Describe(ch)
	m.Errors.Describe(ch)
	m.LastConnectTime.Describe(ch)
	m.MessageSize.Describe(ch)
	m.ReconnectAttempts.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectionStatus.Collect(ch)
	m.MessagesReceived.Collect(ch)
	m.Errors.Collect(ch)
	m.LastConnectTime.Collect(ch)
	m.MessageSize.Collect(ch)
	m.ReconnectAttempts.Collect(ch)
}
