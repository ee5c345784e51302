package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mhews/mhews/internal/api"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/mqtt"
	"github.com/mhews/mhews/internal/observability"
	"github.com/mhews/mhews/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

// Serve runs the HTTP API, MQTT ingestion and the metrics endpoint until
// SIGINT or SIGTERM is received or the HTTP listener fails.
func Serve(settings *conf.Settings) error {
	if err := telemetry.InitSentry(settings); err != nil {
		return err
	}
	defer telemetry.Shutdown(2 * time.Second)

	svc, err := Build(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	quitChan := make(chan struct{})
	quit := sync.OnceFunc(func() { close(quitChan) })
	defer monitorSignals(quit)()

	var wg sync.WaitGroup
	return run(svc, quitChan, quit, &wg)
}

// run starts the enabled surfaces and blocks until quitChan is closed or the
// HTTP listener fails. quit closes quitChan exactly once.
func run(svc *Services, quitChan <-chan struct{}, quit func(), wg *sync.WaitGroup) error {
	log := svc.log
	settings := svc.Settings

	subscriber, err := startSubscriber(svc)
	if err != nil {
		return err
	}

	var server *api.Server
	if settings.WebServer.Enabled {
		s, err := api.New(settings, api.Dependencies{
			Store:          svc.Store,
			Engine:         svc.Engine,
			Alerts:         svc.Alerts,
			Weekly:         svc.Weekly,
			MetricsHandler: svc.Metrics.Handler(),
		})
		if err != nil {
			if subscriber != nil {
				subscriber.Disconnect()
			}
			return err
		}
		server = s
		server.Start()
	}

	if endpoint := observability.NewEndpoint(settings, svc.Metrics); endpoint != nil {
		endpoint.Start(wg, quitChan)
	}

	var serverErr <-chan error
	if server != nil {
		serverErr = server.Err()
	}

	var runErr error
	select {
	case <-quitChan:
		log.Info("shutdown requested")
	case runErr = <-serverErr:
		log.Error("HTTP server failed, shutting down", logger.Error(runErr))
		quit()
	}

	if subscriber != nil {
		subscriber.Disconnect()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("HTTP server shutdown incomplete", logger.Error(err))
		}
		cancel()
	}
	wg.Wait()
	return runErr
}

// startSubscriber connects the MQTT subscriber when enabled. Only an
// invalid broker configuration is fatal; other connect failures are logged
// and the client keeps retrying in the background.
func startSubscriber(svc *Services) (*mqtt.Subscriber, error) {
	if !svc.Settings.MQTT.Enabled {
		return nil, nil
	}
	sub := mqtt.NewSubscriber(mqtt.ConfigFromSettings(svc.Settings), svc.Engine, svc.Metrics.MQTT)
	if err := sub.Connect(context.Background()); err != nil {
		if errors.IsCategory(err, errors.CategoryConfiguration) {
			return nil, err
		}
		svc.log.Warn("MQTT connect failed, retrying in background", logger.Error(err))
	}
	return sub, nil
}

// monitorSignals calls quit on SIGINT or SIGTERM. The returned function
// stops signal delivery.
func monitorSignals(quit func()) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			logger.Global().Module("app").Info("received signal, shutting down", logger.String("signal", sig.String()))
			quit()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
