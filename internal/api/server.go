// Package api hosts the HTTP server. Routes live in the v2 subpackage.
package api

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	v2 "github.com/mhews/mhews/internal/api/v2"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/logger"
)

const (
	defaultPort            = "5000"
	defaultBodyLimit       = "1M"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Dependencies are the services the API serves.
type Dependencies struct {
	Store          datastore.Interface
	Engine         v2.ReadingProcessor
	Alerts         v2.AlertService
	Weekly         v2.WeeklyReporter
	MetricsHandler http.Handler
}

// Server wraps echo with the mhews middleware stack and routes.
type Server struct {
	echo       *echo.Echo
	settings   *conf.Settings
	controller *v2.Controller
	addr       string
	errCh      chan error
	log        logger.Logger
}

// New builds the server. Start must be called to begin serving.
func New(settings *conf.Settings, deps Dependencies) (*Server, error) {
	s := &Server{
		echo:     echo.New(),
		settings: settings,
		addr:     ":" + cmp.Or(settings.WebServer.Port, defaultPort),
		errCh:    make(chan error, 1),
		log:      logger.Global().Module("api"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = settings.WebServer.Debug
	s.echo.Server.ReadTimeout = defaultReadTimeout
	s.echo.Server.WriteTimeout = defaultWriteTimeout
	s.echo.Server.IdleTimeout = defaultIdleTimeout

	s.setupMiddleware()

	var opts []v2.Option
	if deps.MetricsHandler != nil {
		opts = append(opts, v2.WithMetricsHandler(deps.MetricsHandler))
	}
	controller, err := v2.New(s.echo, deps.Store, settings, deps.Engine, deps.Alerts, deps.Weekly, opts...)
	if err != nil {
		return nil, err
	}
	s.controller = controller

	return s, nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(NewCORS(s.settings.WebServer.CORSOrigins))
	s.echo.Use(echomw.BodyLimit(defaultBodyLimit))
}

// NewCORS allows the configured origins, or every origin when none are set.
func NewCORS(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-Requested-With",
		},
	})
}

// Start serves in the background. Listener failures are reported on Err.
func (s *Server) Start() {
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", logger.Error(err))
			s.errCh <- err
		}
	}()
}

// Err receives a listener failure, if any.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	s.controller.Shutdown()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return err
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
