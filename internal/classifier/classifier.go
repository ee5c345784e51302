package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/httpclient"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// Predictor runs inference on one feature vector and returns a class index.
type Predictor interface {
	Name() string
	// InputWidth is the feature vector length the predictor expects.
	InputWidth() int
	Predict(ctx context.Context, features []float32) (int, error)
	Close() error
}

// ErrDisabled is returned by the predictor used when classification is off.
var ErrDisabled = errors.NewStd("classifier disabled")

type disabledPredictor struct{}

func (disabledPredictor) Name() string    { return "none" }
func (disabledPredictor) InputWidth() int { return BaseFeatureCount }
func (disabledPredictor) Close() error    { return nil }
func (disabledPredictor) Predict(context.Context, []float32) (int, error) {
	return -1, ErrDisabled
}

// Service classifies readings. It never fails: any predictor error or panic
// yields hazard.LabelUnknown.
type Service struct {
	predictor Predictor
	timeout   time.Duration
	metrics   *metrics.EngineMetrics
	log       logger.Logger
}

// NewService wraps a predictor. A nil predictor disables classification.
func NewService(p Predictor, timeout time.Duration, m *metrics.EngineMetrics) *Service {
	if p == nil {
		p = disabledPredictor{}
	}
	return &Service{
		predictor: p,
		timeout:   timeout,
		metrics:   m,
		log:       logger.Global().Module("classifier").With(logger.String("backend", p.Name())),
	}
}

// NewFromSettings builds the configured predictor and wraps it.
func NewFromSettings(settings *conf.ClassifierSettings, m *metrics.EngineMetrics) (*Service, error) {
	var p Predictor
	switch strings.ToLower(settings.Type) {
	case "", "tflite":
		tp, err := NewTFLitePredictor(settings.ModelPath, settings.Threads)
		if err != nil {
			return nil, err
		}
		p = tp
	case "http":
		client := httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
		p = NewHTTPPredictor(settings.Endpoint, settings.FeatureWidth, client)
	case "none":
		p = disabledPredictor{}
	default:
		return nil, errors.Newf("unsupported classifier type %q", settings.Type).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NewService(p, settings.Timeout, m), nil
}

// Backend returns the predictor name.
func (s *Service) Backend() string { return s.predictor.Name() }

// Classify returns the risk label for a reading.
func (s *Service) Classify(ctx context.Context, r hazard.Reading) hazard.RiskLabel {
	start := time.Now()
	class, err := s.predict(ctx, Features(r, s.predictor.InputWidth()))
	if s.metrics != nil {
		s.metrics.RecordClassification(time.Since(start), err != nil)
	}
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			s.log.Warn("classification failed, using UNKNOWN", logger.Error(err))
		}
		return hazard.LabelUnknown
	}
	return LabelForClass(class)
}

func (s *Service) predict(ctx context.Context, features []float32) (class int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("predictor panic: %v", r).
				Component("classifier").
				Category(errors.CategoryClassification).
				Priority(errors.PriorityHigh).
				Build()
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	class, err = s.predictor.Predict(ctx, features)
	if err != nil {
		return -1, err
	}
	if class < 0 || class > 2 {
		return -1, errors.New(fmt.Errorf("class index %d out of range", class)).
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}
	return class, nil
}

// Close releases the predictor.
func (s *Service) Close() error {
	return s.predictor.Close()
}
