package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// Error stages recorded in metrics.
const (
	stageDecode    = "decode"
	stageProcess   = "process"
	stageSubscribe = "subscribe"
)

// Subscriber receives sensor readings over MQTT. Messages are handled
// concurrently; Disconnect waits for in-flight ones.
type Subscriber struct {
	config    Config
	processor Processor
	metrics   *metrics.MQTTMetrics
	log       logger.Logger

	mu             sync.Mutex
	internalClient mqtt.Client
	lookupHost     func(ctx context.Context, host string) ([]string, error)

	ctx        context.Context
	cancel     context.CancelFunc
	handlersMu sync.Mutex
	closed     bool
	wg         sync.WaitGroup

	retryCtx     context.Context
	retryCancel  context.CancelFunc
	reconnecting bool
	retryWg      sync.WaitGroup
}

// NewSubscriber creates a subscriber. m may be nil.
func NewSubscriber(config Config, processor Processor, m *metrics.MQTTMetrics) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	retryCtx, retryCancel := context.WithCancel(context.Background())
	return &Subscriber{
		config:      config,
		processor:   processor,
		metrics:     m,
		log:         logger.Global().Module("mqtt"),
		lookupHost:  net.DefaultResolver.LookupHost,
		ctx:         ctx,
		cancel:      cancel,
		retryCtx:    retryCtx,
		retryCancel: retryCancel,
	}
}

// Connect resolves the broker, connects and subscribes. It keeps retrying in
// the background after a failed first attempt: paho retries once a client
// exists, and a reconnect loop with backoff covers failures before that,
// such as a broker name that does not resolve yet. The subscription is
// renewed on every reconnect.
func (s *Subscriber) Connect(ctx context.Context) error {
	err := s.connect(ctx)
	if err != nil && !errors.IsCategory(err, errors.CategoryConfiguration) && !s.hasClient() {
		s.startReconnect()
	}
	return err
}

func (s *Subscriber) hasClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internalClient != nil
}

func (s *Subscriber) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := url.Parse(s.config.Broker)
	if err != nil || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing host")
		}
		return errors.New(fmt.Errorf("invalid broker URL %q: %w", s.config.Broker, err)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := s.lookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("broker", s.config.Broker).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetUsername(s.config.Username)
	opts.SetPassword(s.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	s.internalClient = mqtt.NewClient(opts)

	token := s.internalClient.Connect()
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		return errors.Newf("connection to %s timed out, retrying in background", s.config.Broker).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", s.config.Broker).
			Build()
	}
	return nil
}

// startReconnect runs reconnectWithBackoff once at a time. It is a no-op
// after Disconnect.
func (s *Subscriber) startReconnect() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	if s.closed || s.reconnecting {
		return
	}
	s.reconnecting = true
	s.retryWg.Add(1)
	go func() {
		defer s.retryWg.Done()
		s.reconnectWithBackoff()
	}()
}

// reconnectWithBackoff retries connect until a client exists or the
// subscriber is disconnected. Once a client exists paho owns reconnection.
func (s *Subscriber) reconnectWithBackoff() {
	defer func() {
		s.handlersMu.Lock()
		s.reconnecting = false
		s.handlersMu.Unlock()
	}()

	backoff := max(s.config.ReconnectDelay, 10*time.Millisecond)
	maxBackoff := max(s.config.MaxReconnectDelay, backoff)
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	for {
		select {
		case <-s.retryCtx.Done():
			return
		case <-timer.C:
		}

		if s.metrics != nil {
			s.metrics.RecordReconnectAttempt()
		}
		ctx, cancel := context.WithTimeout(s.retryCtx, s.config.ConnectTimeout)
		err := s.connect(ctx)
		cancel()

		if err == nil {
			s.log.Info("reconnected to MQTT broker", logger.String("broker", s.config.Broker))
			return
		}
		if s.hasClient() {
			s.log.Warn("MQTT client created, broker not reachable yet", logger.Error(err))
			return
		}

		backoff = min(backoff*2, maxBackoff)
		s.log.Warn("failed to reconnect to MQTT broker",
			logger.Error(err),
			logger.Duration("retry_in", backoff))
		timer.Reset(backoff)
	}
}

// IsConnected reports whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internalClient != nil && s.internalClient.IsConnected()
}

// Disconnect stops the client and waits for in-flight messages, each
// bounded by ProcessTimeout.
func (s *Subscriber) Disconnect() {
	s.handlersMu.Lock()
	s.closed = true
	s.handlersMu.Unlock()

	s.retryCancel()
	s.retryWg.Wait()

	s.mu.Lock()
	c := s.internalClient
	s.mu.Unlock()

	if c != nil {
		c.Disconnect(uint(s.config.DisconnectTimeout.Milliseconds()))
	}
	s.wg.Wait()
	s.cancel()
	if s.metrics != nil {
		s.metrics.UpdateConnectionStatus(false)
	}
}

func (s *Subscriber) onConnect(c mqtt.Client) {
	s.log.Info("connected to MQTT broker", logger.String("broker", s.config.Broker))
	if s.metrics != nil {
		s.metrics.UpdateConnectionStatus(true)
	}

	token := c.Subscribe(s.config.Topic, s.config.QoS, s.onMessage)
	if !token.WaitTimeout(s.config.SubscribeTimeout) || token.Error() != nil {
		s.log.Error("subscribe failed",
			logger.String("topic", s.config.Topic),
			logger.Error(token.Error()))
		s.recordError(stageSubscribe)
		return
	}
	s.log.Info("subscribed to sensor topic",
		logger.String("topic", s.config.Topic),
		logger.Int("qos", int(s.config.QoS)))
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.log.Warn("connection to MQTT broker lost",
		logger.String("broker", s.config.Broker),
		logger.Error(err))
	if s.metrics != nil {
		s.metrics.UpdateConnectionStatus(false)
	}
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handlersMu.Lock()
	if s.closed {
		s.handlersMu.Unlock()
		return
	}
	s.wg.Add(1)
	s.handlersMu.Unlock()
	defer s.wg.Done()

	_ = s.HandleMessage(msg.Topic(), msg.Payload())
}

// HandleMessage decodes one payload and passes it to the processor. When
// the payload carries no device field, the last topic level is used.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	if s.metrics != nil {
		s.metrics.RecordMessage(len(payload))
	}
	log := s.log.With(logger.String("topic", topic))

	in, err := engine.DecodeSensorJSON(payload)
	if err != nil {
		s.recordError(stageDecode)
		log.Warn("discarding sensor message", logger.Error(err))
		return err
	}
	if device := deviceFromTopic(topic); device != "" {
		if _, ok := in.Extra["device"]; !ok {
			if in.Extra == nil {
				in.Extra = make(map[string]any)
			}
			in.Extra["device"] = device
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.ProcessTimeout)
	defer cancel()

	out, err := s.processor.ProcessReading(ctx, in)
	if err != nil {
		s.recordError(stageProcess)
		log.Error("failed to process sensor message", logger.Error(err))
		return err
	}
	log.Debug("sensor message processed",
		logger.String("risk", string(out.Risk)),
		logger.Int("dispatches", len(out.Dispatches)))
	return nil
}

// deviceFromTopic returns the last level of a multi-level topic.
func deviceFromTopic(topic string) string {
	i := strings.LastIndexByte(topic, '/')
	if i < 0 || i == len(topic)-1 {
		return ""
	}
	return topic[i+1:]
}

func (s *Subscriber) recordError(stage string) {
	if s.metrics != nil {
		s.metrics.RecordError(stage)
	}
}
