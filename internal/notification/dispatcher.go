package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// Dispatch failure reasons.
const (
	ReasonCooldown     = "cooldown"
	ReasonNoRecipients = "no valid recipients"
)

const (
	defaultDispatchTimeout = 30 * time.Second
	defaultPlaceholder     = "XXXXXXXXXX"
)

// Cooldown is the quiet-period policy consulted before every dispatch.
type Cooldown interface {
	IsSuppressed(ctx context.Context, hazardType hazard.Type, now time.Time) (bool, error)
	Record(ctx context.Context, hazardType hazard.Type, at time.Time) error
}

// Store persists successful dispatches.
type Store interface {
	SaveNotification(ctx context.Context, n *datastore.NotificationRecord) error
}

// DeliveryResult is the gateway outcome for one recipient.
type DeliveryResult struct {
	To     string `json:"to"`
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// DispatchResult summarises one dispatch. Reason explains why nothing was
// sent, or, when Sent is true, the gateway error that cut delivery short.
type DispatchResult struct {
	Sent    bool             `json:"sent"`
	Count   int              `json:"count,omitempty"`
	Results []DeliveryResult `json:"results,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// Config holds dispatcher settings.
type Config struct {
	From              string
	DefaultRecipients []string
	PlaceholderMarker string
	Timeout           time.Duration
}

// ConfigFromSettings derives a dispatcher Config.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		From:              settings.Gateway.Twilio.From,
		DefaultRecipients: settings.Notification.DefaultRecipients(),
		PlaceholderMarker: settings.Notification.PlaceholderMarker,
		Timeout:           settings.Notification.DispatchTimeout,
	}
}

// Dispatcher sends hazard messages. Dispatches of the same hazard type are
// serialised so the cooldown check, the sends and the cooldown record happen
// as one step; different types run in parallel.
type Dispatcher struct {
	gateway  Gateway
	cooldown Cooldown
	store    Store
	metrics  *metrics.NotificationMetrics
	config   Config
	log      logger.Logger
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[hazard.Type]chan struct{}
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(gateway Gateway, cooldown Cooldown, store Store, m *metrics.NotificationMetrics, config Config) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = defaultDispatchTimeout
	}
	if config.PlaceholderMarker == "" {
		config.PlaceholderMarker = defaultPlaceholder
	}
	return &Dispatcher{
		gateway:  gateway,
		cooldown: cooldown,
		store:    store,
		metrics:  m,
		config:   config,
		log:      logger.Global().Module("notification"),
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[hazard.Type]chan struct{}),
	}
}

// lockFor returns the single-slot semaphore guarding one hazard type.
func (d *Dispatcher) lockFor(hazardType hazard.Type) chan struct{} {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	l, ok := d.locks[hazardType]
	if !ok {
		l = make(chan struct{}, 1)
		d.locks[hazardType] = l
	}
	return l
}

// Dispatch delivers message to recipients, or to the configured defaults
// when recipients is empty. It never retries. A gateway error stops the
// loop. Cooldown and the notification record are written whenever at least
// one recipient was accepted, including before such an error.
func (d *Dispatcher) Dispatch(ctx context.Context, hazardType hazard.Type, message string, recipients []string) DispatchResult {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	lock := d.lockFor(hazardType)
	select {
	case lock <- struct{}{}:
		defer func() { <-lock }()
	case <-ctx.Done():
		return d.fail(hazardType, metrics.OutcomeError, ctx.Err().Error())
	}

	if d.metrics != nil {
		d.metrics.DispatchActive.Inc()
		defer d.metrics.DispatchActive.Dec()
	}

	log := d.log.WithContext(ctx).With(logger.String("hazard_type", string(hazardType)))

	if len(recipients) == 0 {
		recipients = d.config.DefaultRecipients
	}

	now := d.now()
	suppressed, err := d.cooldown.IsSuppressed(ctx, hazardType, now)
	if err != nil {
		// An unreadable history must not silence a warning.
		log.Warn("cooldown check failed, sending anyway", logger.Error(err))
	}
	if suppressed {
		if d.metrics != nil {
			d.metrics.RecordDispatch(string(hazardType), metrics.OutcomeCooldown)
		}
		return DispatchResult{Reason: ReasonCooldown}
	}

	var (
		results   []DeliveryResult
		delivered []string
		lastSID   string
		sendErr   error
	)
	for _, to := range recipients {
		to = strings.TrimSpace(to)
		if to == "" || strings.Contains(to, d.config.PlaceholderMarker) {
			continue
		}

		receipt, err := d.gateway.Send(ctx, d.config.From, to, message)
		if err != nil {
			log.Error("gateway send failed",
				logger.String("gateway", d.gateway.Name()),
				logger.Int("delivered_before_failure", len(results)),
				logger.Error(err))
			sendErr = err
			break
		}
		results = append(results, DeliveryResult{To: to, SID: receipt.SID, Status: receipt.Status})
		delivered = append(delivered, to)
		lastSID = receipt.SID
	}

	if len(results) == 0 && sendErr != nil {
		return d.fail(hazardType, metrics.OutcomeError, sendErr.Error())
	}
	if len(results) == 0 {
		log.Warn("no valid recipients", logger.Int("candidates", len(recipients)))
		return d.fail(hazardType, metrics.OutcomeNoRecipients, ReasonNoRecipients)
	}

	if err := d.cooldown.Record(ctx, hazardType, now); err != nil {
		log.Warn("failed to record cooldown", logger.Error(err))
	}
	record := &datastore.NotificationRecord{
		HazardType:       string(hazardType),
		Message:          message,
		Recipients:       delivered,
		GatewayMessageID: lastSID,
		SentAt:           now,
	}
	if err := d.store.SaveNotification(ctx, record); err != nil {
		// The messages went out; the caller still gets a sent result.
		log.Error("failed to persist notification record", logger.Error(err))
	}

	if d.metrics != nil {
		d.metrics.RecordDispatch(string(hazardType), metrics.OutcomeSent)
	}
	log.Info("notification sent",
		logger.Int("count", len(results)),
		logger.String("gateway_message_id", lastSID))

	res := DispatchResult{Sent: true, Count: len(results), Results: results}
	if sendErr != nil {
		res.Reason = sendErr.Error()
	}
	return res
}

func (d *Dispatcher) fail(hazardType hazard.Type, outcome, reason string) DispatchResult {
	if d.metrics != nil {
		d.metrics.RecordDispatch(string(hazardType), outcome)
	}
	return DispatchResult{Reason: reason}
}
