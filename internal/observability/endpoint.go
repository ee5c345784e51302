package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Endpoint serves /metrics on its own listener so scraping works even when
// the API server is disabled.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint returns nil when telemetry is disabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) *Endpoint {
	if !settings.Telemetry.Enabled || settings.Telemetry.Listen == "" {
		return nil
	}
	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		log:           logger.Global().Module("observability"),
	}
}

// Start runs the HTTP server until quit is closed.
func (e *Endpoint) Start(wg *sync.WaitGroup, quit <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Go(func() {
		e.log.Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("telemetry HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil {
			e.log.Warn("telemetry server shutdown", logger.Error(err))
		}
	})
}
