// Package app assembles the mhews services from settings and runs them.
package app

import (
	"github.com/mhews/mhews/internal/alerts"
	"github.com/mhews/mhews/internal/classifier"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/cooldown"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/hazard"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/observability"
	"github.com/mhews/mhews/internal/risk"
)

// Services holds the wired components shared by the commands.
type Services struct {
	Settings   *conf.Settings
	Store      datastore.Interface
	Metrics    *observability.Metrics
	Gateway    *notification.GuardedGateway
	Dispatcher *notification.Dispatcher
	Classifier *classifier.Service
	Engine     *engine.Engine
	Alerts     *alerts.Service
	Weekly     *risk.Aggregator

	log logger.Logger
}

// Build opens the store and wires every service. Close must be called when
// Build succeeds.
func Build(settings *conf.Settings) (*Services, error) {
	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	return build(settings, store)
}

// BuildReports opens the store and the weekly aggregator only. No gateway
// or classifier is created.
func BuildReports(settings *conf.Settings) (*Services, error) {
	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	s := newServices(settings, store)
	s.Weekly = risk.NewAggregator(store)
	return s, nil
}

// BuildNotifier wires what a manual broadcast needs: the store, the gateway
// and the dispatcher. The classifier stays disabled so no model is loaded.
func BuildNotifier(settings *conf.Settings) (*Services, error) {
	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	s := newServices(settings, store)
	if err := s.wireDispatch(); err != nil {
		s.closeStore()
		return nil, err
	}
	s.Classifier = classifier.NewService(nil, 0, s.Metrics.Engine)
	s.wireEngine()
	return s, nil
}

func openStore(settings *conf.Settings) (datastore.Interface, error) {
	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

func newServices(settings *conf.Settings, store datastore.Interface) *Services {
	return &Services{
		Settings: settings,
		Store:    store,
		log:      logger.Global().Module("app"),
	}
}

// build wires services around an opened store. The store is closed on error.
func build(settings *conf.Settings, store datastore.Interface) (*Services, error) {
	s := newServices(settings, store)
	if err := s.wireDispatch(); err != nil {
		s.closeStore()
		return nil, err
	}

	cls, err := classifier.NewFromSettings(&settings.Classifier, s.Metrics.Engine)
	if err != nil {
		s.closeStore()
		return nil, err
	}
	s.Classifier = cls
	s.wireEngine()
	s.Alerts = alerts.NewService(store, s.Dispatcher, s.Metrics.Engine)
	s.Weekly = risk.NewAggregator(store)

	s.log.Info("services initialized",
		logger.String("database", settings.Database.Type),
		logger.String("gateway", s.Gateway.Name()),
		logger.String("classifier", cls.Backend()))
	return s, nil
}

// wireDispatch creates the metrics, the gateway and the dispatcher.
func (s *Services) wireDispatch() error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	s.Metrics = m

	gw, err := notification.NewGatewayFromSettings(&s.Settings.Gateway, m.Notification)
	if err != nil {
		return err
	}
	s.Gateway = gw

	tracker := cooldown.NewFromSettings(s.Store, &s.Settings.Notification)
	s.Dispatcher = notification.NewDispatcher(gw, tracker, s.Store, m.Notification, notification.ConfigFromSettings(s.Settings))
	return nil
}

func (s *Services) wireEngine() {
	evaluator := hazard.NewEvaluator(hazard.PolicyFromSettings(&s.Settings.Thresholds))
	opts := []engine.Option{engine.WithMetrics(s.Metrics.Engine)}
	if s.Settings.Notification.DispatchTimeout > 0 {
		opts = append(opts, engine.WithCandidateTimeout(s.Settings.Notification.DispatchTimeout))
	}
	s.Engine = engine.New(s.Classifier, evaluator, s.Dispatcher, s.Store, opts...)
}

// Close releases the classifier and the store.
func (s *Services) Close() {
	if s.Classifier != nil {
		if err := s.Classifier.Close(); err != nil {
			s.log.Warn("failed to close classifier", logger.Error(err))
		}
	}
	s.closeStore()
}

func (s *Services) closeStore() {
	if err := s.Store.Close(); err != nil {
		s.log.Error("failed to close database", logger.Error(err))
		return
	}
	s.log.Info("database closed")
}
