// Package alerts manages operator-raised alerts: creation with optional SMS
// broadcast, prioritised listing, resolution and deletion.
package alerts

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"

	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/observability/metrics"
)

const (
	// ChannelSMS in an alert's channel list triggers an SMS broadcast.
	ChannelSMS = "SMS"
	// ListLimit is how many of the newest alerts List considers.
	ListLimit = 100
	// smsMessageLimit bounds the operator message inside the SMS body.
	smsMessageLimit = 100
)

// severityRank orders severities for listing; anything else ranks last.
var severityRank = map[string]int{
	"Critical": 0,
	"High":     1,
	"Moderate": 2,
	"Low":      3,
}

// SeverityRank returns the listing rank of a severity. Matching is exact.
func SeverityRank(s string) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Notifier is the dispatch capability alerts need.
type Notifier interface {
	Dispatch(ctx context.Context, hazardType hazard.Type, message string, recipients []string) notification.DispatchResult
}

// Input is an operator request to raise an alert.
type Input struct {
	Type     string   `json:"type"`
	Severity string   `json:"severity"`
	Location string   `json:"location"`
	Message  string   `json:"message"`
	Channels []string `json:"channels"`
}

// Service implements the alert lifecycle.
type Service struct {
	store    datastore.Interface
	notifier Notifier
	metrics  *metrics.EngineMetrics
	log      logger.Logger
	now      func() time.Time
}

// NewService creates an alert service. notifier and m may be nil.
func NewService(store datastore.Interface, notifier Notifier, m *metrics.EngineMetrics) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		log:      logger.Global().Module("alerts"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (in *Input) validate() error {
	fields := []struct{ name, value string }{
		{"type", in.Type},
		{"severity", in.Severity},
		{"location", in.Location},
		{"message", in.Message},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return errors.Newf("missing field: %s", f.name).
				Component("alerts").
				Category(errors.CategoryValidation).
				Context("field", f.name).
				Build()
		}
	}
	return nil
}

// Create stores a new Active alert. When its channels include SMS the alert
// is broadcast as a MANUAL notification and the outcome embedded in the
// returned record; delivery failures never fail creation.
func (s *Service) Create(ctx context.Context, in Input) (*datastore.AlertRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	seq, err := s.store.NextAlertSequence(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	channels := in.Channels
	if channels == nil {
		channels = []string{}
	}
	alert := &datastore.AlertRecord{
		AlertID:   FormatID(now.Year(), seq),
		Type:      in.Type,
		Severity:  in.Severity,
		Location:  in.Location,
		Message:   in.Message,
		Channels:  channels,
		Status:    datastore.AlertStatusActive,
		Timestamp: now,
	}
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx).With(logger.String("alert_id", alert.AlertID))
	log.Info("alert created",
		logger.String("type", alert.Type),
		logger.String("severity", alert.Severity),
		logger.String("location", alert.Location))

	if s.metrics != nil {
		s.metrics.RecordAlertCreated(alert.Severity)
	}
	s.refreshActiveGauge(ctx)

	if slices.Contains(channels, ChannelSMS) && s.notifier != nil {
		result := s.notifier.Dispatch(ctx, hazard.Manual, smsBody(alert), nil)
		if data, err := json.Marshal(result); err == nil {
			alert.SMSResult = datatypes.JSON(data)
			if err := s.store.SetAlertSMSResult(ctx, alert.AlertID, alert.SMSResult); err != nil {
				log.Warn("failed to store sms result", logger.Error(err))
			}
		}
		if !result.Sent {
			log.Warn("alert sms not delivered", logger.String("reason", result.Reason))
		}
	}

	return alert, nil
}

// FormatID renders the public alert id.
func FormatID(year, seq int) string {
	return fmt.Sprintf("AL-%d-%03d", year, seq)
}

// smsBody renders the broadcast text. Casers are stateful, so one is built
// per call.
func smsBody(a *datastore.AlertRecord) string {
	msg := a.Message
	if r := []rune(msg); len(r) > smsMessageLimit {
		msg = string(r[:smsMessageLimit])
	}
	return fmt.Sprintf("MHEWS ALERT [%s]\nType: %s\nLocation: %s\n%s\nRef: %s",
		cases.Upper(language.Und).String(a.Severity), a.Type, a.Location, msg, a.AlertID)
}

// List returns the newest ListLimit alerts, Active before Resolved and then
// by severity rank. Within a group the newest comes first.
func (s *Service) List(ctx context.Context) ([]datastore.AlertRecord, error) {
	alerts, err := s.store.RecentAlerts(ctx, ListLimit)
	if err != nil {
		return nil, err
	}
	SortForDisplay(alerts)
	return alerts, nil
}

// SortForDisplay stable-sorts alerts by status then severity rank.
func SortForDisplay(alerts []datastore.AlertRecord) {
	statusRank := func(status string) int {
		if status == datastore.AlertStatusActive {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(alerts, func(a, b datastore.AlertRecord) int {
		return cmp.Or(
			cmp.Compare(statusRank(a.Status), statusRank(b.Status)),
			cmp.Compare(SeverityRank(a.Severity), SeverityRank(b.Severity)),
		)
	})
}

// Resolve marks an alert Resolved. Unknown ids yield a not-found error.
func (s *Service) Resolve(ctx context.Context, alertID string) (*datastore.AlertRecord, error) {
	alert, err := s.store.ResolveAlert(ctx, alertID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("alert resolved", logger.String("alert_id", alertID))
	s.refreshActiveGauge(ctx)
	return alert, nil
}

// Delete removes an alert. Unknown ids yield a not-found error.
func (s *Service) Delete(ctx context.Context, alertID string) error {
	if err := s.store.DeleteAlert(ctx, alertID); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("alert deleted", logger.String("alert_id", alertID))
	s.refreshActiveGauge(ctx)
	return nil
}

func (s *Service) refreshActiveGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.store.CountActiveAlerts(ctx)
	if err != nil {
		s.log.Debug("active alert count unavailable", logger.Error(err))
		return
	}
	s.metrics.SetActiveAlerts(n)
}
