// Package mqtt ingests sensor readings published to an MQTT broker and
// feeds them to the engine.
package mqtt

import (
	"context"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/engine"
)

// Processor handles one decoded reading.
type Processor interface {
	ProcessReading(ctx context.Context, in engine.SensorInput) (engine.Outcome, error)
}

// Config holds the configuration for the MQTT subscriber.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // subscription filter, may contain wildcards
	QoS      byte
	// Connection timeouts
	ConnectTimeout    time.Duration
	SubscribeTimeout  time.Duration
	DisconnectTimeout time.Duration
	// ProcessTimeout bounds the handling of one message.
	ProcessTimeout time.Duration
	// Reconnect backoff used while no client could be created, for
	// example when the broker name does not resolve.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		Topic:             "mhews/sensors/+",
		QoS:               1,
		ConnectTimeout:    30 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		ProcessTimeout:    time.Minute,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 5 * time.Minute,
	}
}

// ConfigFromSettings derives a Config from settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.QoS = settings.MQTT.QoS
	if settings.MQTT.Topic != "" {
		cfg.Topic = settings.MQTT.Topic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "mhews"
	}
	return cfg
}
