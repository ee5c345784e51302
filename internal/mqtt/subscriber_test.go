package mqtt

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []engine.SensorInput
	err     error
	started chan struct{}
	block   chan struct{}
}

func (p *fakeProcessor) ProcessReading(ctx context.Context, in engine.SensorInput) (engine.Outcome, error) {
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return engine.Outcome{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, in)
	if p.err != nil {
		return engine.Outcome{}, p.err
	}
	return engine.Outcome{Risk: hazard.LabelLow}, nil
}

func (p *fakeProcessor) received() []engine.SensorInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.SensorInput(nil), p.calls...)
}

// fakeMessage implements mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestSubscriber(t *testing.T, p Processor) (*Subscriber, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	s := NewSubscriber(DefaultConfig(), p, m)
	return s, m
}

func TestConfigFromSettings(t *testing.T) {
	settings := &conf.Settings{}
	settings.MQTT.Broker = "tcp://broker.local:1883"
	settings.MQTT.QoS = 2

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, "mhews/sensors/+", cfg.Topic)
	assert.Equal(t, "mhews", cfg.ClientID)
	assert.Equal(t, byte(2), cfg.QoS)

	settings.MQTT.Topic = "district/+/readings"
	settings.MQTT.ClientID = "node-a"
	cfg = ConfigFromSettings(settings)
	assert.Equal(t, "district/+/readings", cfg.Topic)
	assert.Equal(t, "node-a", cfg.ClientID)
}

func TestHandleMessage(t *testing.T) {
	p := &fakeProcessor{}
	s, m := newTestSubscriber(t, p)

	require.NoError(t, s.HandleMessage("mhews/sensors/node-7", []byte(`{"distance": 42, "rain_level": 80}`)))

	calls := p.received()
	require.Len(t, calls, 1)
	assert.Equal(t, map[hazard.Signal]float64{hazard.Distance: 42, hazard.RainLevel: 80}, calls[0].Signals)
	assert.Equal(t, "node-7", calls[0].Extra["device"])
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesReceived), 0)
}

func TestHandleMessage_PayloadDeviceWins(t *testing.T) {
	p := &fakeProcessor{}
	s, _ := newTestSubscriber(t, p)

	require.NoError(t, s.HandleMessage("mhews/sensors/node-7", []byte(`{"distance": 42, "device": "gauge-2"}`)))
	assert.Equal(t, "gauge-2", p.received()[0].Extra["device"])

	require.NoError(t, s.HandleMessage("sensors", []byte(`{"distance": 42}`)))
	assert.Nil(t, p.received()[1].Extra)
}

func TestHandleMessage_DecodeError(t *testing.T) {
	p := &fakeProcessor{}
	s, m := newTestSubscriber(t, p)

	for _, payload := range []string{`not json`, `{}`, `{"distance": "deep"}`} {
		err := s.HandleMessage("mhews/sensors/node-7", []byte(payload))
		require.Error(t, err, payload)
		assert.True(t, errors.IsValidation(err))
	}
	assert.Empty(t, p.received())
	assert.InDelta(t, 3, testutil.ToFloat64(m.Errors.WithLabelValues(stageDecode)), 0)
}

func TestHandleMessage_ProcessError(t *testing.T) {
	p := &fakeProcessor{err: errors.NewStd("database is locked")}
	s, m := newTestSubscriber(t, p)

	err := s.HandleMessage("mhews/sensors/node-7", []byte(`{"temperature": 30}`))
	require.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues(stageProcess)), 0)
}

func TestDisconnect_WaitsForHandlers(t *testing.T) {
	p := &fakeProcessor{started: make(chan struct{}, 1), block: make(chan struct{})}
	s, _ := newTestSubscriber(t, p)

	handled := make(chan struct{})
	go func() {
		s.onMessage(nil, fakeMessage{topic: "mhews/sensors/a", payload: []byte(`{"distance": 10}`)})
		close(handled)
	}()
	<-p.started

	disconnected := make(chan struct{})
	go func() {
		s.Disconnect()
		close(disconnected)
	}()

	select {
	case <-disconnected:
		t.Fatal("Disconnect returned while a message was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(p.block)
	<-disconnected
	<-handled
	require.Len(t, p.received(), 1)

	// Messages after shutdown are dropped.
	s.onMessage(nil, fakeMessage{topic: "mhews/sensors/a", payload: []byte(`{"distance": 10}`)})
	assert.Len(t, p.received(), 1)
}

func TestConnect_InvalidBroker(t *testing.T) {
	for _, broker := range []string{"", "://nope", "tcp://"} {
		cfg := DefaultConfig()
		cfg.Broker = broker
		s := NewSubscriber(cfg, &fakeProcessor{}, nil)

		err := s.Connect(context.Background())
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), broker)
		assert.False(t, s.IsConnected())
		s.Disconnect()
	}
}

func TestConnect_RetriesAfterResolveFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Broker = "tcp://mhews-broker.invalid:1883"
	cfg.ConnectTimeout = time.Second
	cfg.ReconnectDelay = 5 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	s := NewSubscriber(cfg, &fakeProcessor{}, m)
	var lookups atomic.Int32
	s.lookupHost = func(context.Context, string) ([]string, error) {
		lookups.Add(1)
		return nil, errors.NewStd("no such host")
	}

	err = s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	require.Eventually(t, func() bool { return lookups.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.ReconnectAttempts), 2.0)
	assert.False(t, s.IsConnected())

	s.Disconnect()
	stopped := lookups.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, lookups.Load(), "reconnect loop must stop on Disconnect")
}

func TestConnect_NoRetryAfterDisconnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Broker = "tcp://mhews-broker.invalid:1883"
	cfg.ReconnectDelay = 5 * time.Millisecond
	s := NewSubscriber(cfg, &fakeProcessor{}, nil)
	var lookups atomic.Int32
	s.lookupHost = func(context.Context, string) ([]string, error) {
		lookups.Add(1)
		return nil, errors.NewStd("no such host")
	}

	s.Disconnect()
	require.Error(t, s.Connect(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), lookups.Load())
}

func TestDeviceFromTopic(t *testing.T) {
	assert.Equal(t, "node-7", deviceFromTopic("mhews/sensors/node-7"))
	assert.Empty(t, deviceFromTopic("mhews/sensors/"))
	assert.Empty(t, deviceFromTopic("sensors"))
}
