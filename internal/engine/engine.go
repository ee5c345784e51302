// Package engine runs the reading pipeline: classify, persist, evaluate
// thresholds and dispatch notifications for every hazard found.
package engine

import (
	"context"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// Classifier assigns a risk label to a reading. It must not fail.
type Classifier interface {
	Classify(ctx context.Context, r hazard.Reading) hazard.RiskLabel
}

// Dispatcher delivers one hazard notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, hazardType hazard.Type, message string, recipients []string) notification.DispatchResult
}

// ReadingStore persists classified readings.
type ReadingStore interface {
	SaveReading(ctx context.Context, r *datastore.SensorReading) error
}

// HazardDispatch is the outcome for one candidate of a reading.
type HazardDispatch struct {
	Type   hazard.Type                 `json:"type"`
	Tier   hazard.Tier                 `json:"tier"`
	Result notification.DispatchResult `json:"result"`
}

// Outcome is the result of processing one reading.
type Outcome struct {
	Risk       hazard.RiskLabel `json:"risk"`
	Timestamp  time.Time        `json:"timestamp"`
	Dispatches []HazardDispatch `json:"dispatches,omitempty"`
}

// Engine processes readings and manual sends.
type Engine struct {
	classifier       Classifier
	evaluator        *hazard.Evaluator
	dispatcher       Dispatcher
	store            ReadingStore
	metrics          *metrics.EngineMetrics
	candidateTimeout time.Duration
	log              logger.Logger
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine metrics.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCandidateTimeout bounds each candidate dispatch.
func WithCandidateTimeout(d time.Duration) Option {
	return func(e *Engine) { e.candidateTimeout = d }
}

// New creates an engine.
func New(c Classifier, ev *hazard.Evaluator, d Dispatcher, store ReadingStore, opts ...Option) *Engine {
	e := &Engine{
		classifier:       c,
		evaluator:        ev,
		dispatcher:       d,
		store:            store,
		candidateTimeout: 30 * time.Second,
		log:              logger.Global().Module("engine"),
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessReading classifies, stores and evaluates one reading, then
// dispatches every hazard candidate concurrently. Only a storage failure is
// returned as an error; dispatch failures are reported per hazard.
func (e *Engine) ProcessReading(ctx context.Context, in SensorInput) (Outcome, error) {
	reading := hazard.Reading{
		Signals:   maps.Clone(in.Signals),
		Timestamp: e.now(),
	}
	if reading.Signals == nil {
		reading.Signals = map[hazard.Signal]float64{}
	}

	label := e.classifier.Classify(ctx, reading)
	if e.metrics != nil {
		e.metrics.RecordReading(string(label))
	}

	if err := e.store.SaveReading(ctx, toRecord(in, reading, label)); err != nil {
		return Outcome{}, err
	}

	candidates := e.evaluator.Evaluate(reading, label)
	out := Outcome{Risk: label, Timestamp: reading.Timestamp}
	if len(candidates) == 0 {
		return out, nil
	}

	out.Dispatches = e.dispatchAll(ctx, candidates)
	return out, nil
}

// dispatchAll fans candidates out, one goroutine each. A reading's
// notifications are not tied to the caller's lifetime, only to the
// per-candidate timeout.
func (e *Engine) dispatchAll(ctx context.Context, candidates []hazard.Candidate) []HazardDispatch {
	base := context.WithoutCancel(ctx)
	results := make([]HazardDispatch, len(candidates))

	var g errgroup.Group
	for i, c := range candidates {
		if e.metrics != nil {
			e.metrics.RecordCandidate(string(c.Type), string(c.Tier))
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(base, e.candidateTimeout)
			defer cancel()

			res := e.dispatcher.Dispatch(cctx, c.Type, c.Message, nil)
			results[i] = HazardDispatch{Type: c.Type, Tier: c.Tier, Result: res}

			log := e.log.With(
				logger.String("hazard_type", string(c.Type)),
				logger.String("tier", string(c.Tier)))
			if res.Sent {
				log.Info("hazard notification sent", logger.Int("count", res.Count))
			} else {
				log.Debug("hazard notification not sent", logger.String("reason", res.Reason))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ManualSend broadcasts an operator message as a MANUAL notification.
func (e *Engine) ManualSend(ctx context.Context, message string, recipients []string) (notification.DispatchResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return notification.DispatchResult{}, errors.Newf("message is required").
			Component("engine").
			Category(errors.CategoryValidation).
			Context("field", "message").
			Build()
	}
	return e.dispatcher.Dispatch(ctx, hazard.Manual, message, recipients), nil
}
