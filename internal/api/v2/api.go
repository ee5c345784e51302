// Package api exposes the mhews HTTP API: sensor ingestion, manual SMS,
// the notification log, weekly risk and the alert lifecycle.
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mhews/mhews/internal/alerts"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/datastore"
	"github.com/mhews/mhews/internal/engine"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/notification"
	"github.com/mhews/mhews/internal/risk"
)

// Prefix is the versioned route prefix. Every route is also served
// unprefixed for existing dashboard clients.
const Prefix = "/api/v2"

// ReadingProcessor runs sensor readings and manual sends.
type ReadingProcessor interface {
	ProcessReading(ctx context.Context, in engine.SensorInput) (engine.Outcome, error)
	ManualSend(ctx context.Context, message string, recipients []string) (notification.DispatchResult, error)
}

// AlertService manages operator alerts.
type AlertService interface {
	Create(ctx context.Context, in alerts.Input) (*datastore.AlertRecord, error)
	List(ctx context.Context) ([]datastore.AlertRecord, error)
	Resolve(ctx context.Context, alertID string) (*datastore.AlertRecord, error)
	Delete(ctx context.Context, alertID string) error
}

// WeeklyReporter summarises the last seven days of risk labels.
type WeeklyReporter interface {
	Weekly(ctx context.Context) ([]risk.DaySummary, error)
}

// Controller manages the API routes and their dependencies.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Engine   ReadingProcessor
	Alerts   AlertService
	Weekly   WeeklyReporter

	metricsHandler http.Handler
	apiLogger      logger.Logger
	startTime      time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetricsHandler serves the given handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Controller) { c.metricsHandler = h }
}

// WithLogger overrides the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.apiLogger = l }
}

// New creates the API controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	proc ReadingProcessor, alertService AlertService, weekly WeeklyReporter, opts ...Option,
) (*Controller, error) {
	switch {
	case ds == nil:
		return nil, configError("datastore")
	case settings == nil:
		return nil, configError("settings")
	case proc == nil:
		return nil, configError("engine")
	case alertService == nil:
		return nil, configError("alert service")
	case weekly == nil:
		return nil, configError("weekly reporter")
	}

	c := &Controller{
		Echo:      e,
		Group:     e.Group(Prefix),
		DS:        ds,
		Settings:  settings,
		Engine:    proc,
		Alerts:    alertService,
		Weekly:    weekly,
		apiLogger: logger.Global().Module("api"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Echo.Use(c.LoggingMiddleware())
	if err := c.initRoutes(); err != nil {
		return nil, err
	}
	return c, nil
}

func configError(missing string) error {
	return errors.Newf("api controller requires a %s", missing).
		Component("api").
		Category(errors.CategoryConfiguration).
		Build()
}

// initRoutes registers every route group on the versioned prefix and on the
// root. A panic in one initializer is reported instead of crashing startup.
func (c *Controller) initRoutes() (err error) {
	routeInitializers := []struct {
		name string
		fn   func(g *echo.Group)
	}{
		{"health", c.initHealthRoutes},
		{"readings", c.initReadingRoutes},
		{"notifications", c.initNotificationRoutes},
		{"risk", c.initRiskRoutes},
		{"alerts", c.initAlertRoutes},
	}

	for _, g := range []*echo.Group{c.Group, c.Echo.Group("")} {
		for _, ri := range routeInitializers {
			func() {
				defer func() {
					if r := recover(); r != nil && err == nil {
						err = errors.Newf("initializing %s routes: %v", ri.name, r).
							Component("api").
							Category(errors.CategorySystem).
							Build()
					}
				}()
				ri.fn(g)
			}()
		}
	}
	if err != nil {
		return err
	}

	c.Echo.GET("/", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "MHEWS Backend Running")
	})
	return nil
}

func (c *Controller) initHealthRoutes(g *echo.Group) {
	g.GET("/health", c.HealthCheck)
	if c.metricsHandler != nil {
		g.GET("/metrics", echo.WrapHandler(c.metricsHandler))
	}
}

// HealthCheck reports service status and whether the store answers.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	status, dbStatus, code := "healthy", "connected", http.StatusOK

	if _, err := c.DS.LatestReading(ctx.Request().Context()); err != nil && !errors.IsNotFound(err) {
		status, dbStatus, code = "unhealthy", "error", http.StatusServiceUnavailable
		c.apiLogger.Warn("health check database probe failed", logger.Error(err))
	}

	return ctx.JSON(code, map[string]any{
		"status":          status,
		"name":            c.Settings.Main.Name,
		"version":         c.Settings.Version,
		"build_date":      c.Settings.BuildDate,
		"database_status": dbStatus,
		"uptime":          uptime.Round(time.Second).String(),
		"uptime_seconds":  uptime.Seconds(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error body. Without err the message doubles
// as the error text.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err with a correlation id and writes the error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.apiLogger.Error("API error", fields...)
	} else {
		c.apiLogger.Debug("API client error", fields...)
	}

	return ctx.JSON(code, resp)
}

// handleServiceError maps error categories onto status codes. Validation
// errors expose their text; everything else only exposes message.
func (c *Controller) handleServiceError(ctx echo.Context, err error, message string) error {
	switch {
	case errors.IsValidation(err):
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	case errors.IsNotFound(err):
		return c.HandleError(ctx, nil, message, http.StatusNotFound)
	default:
		resp := NewErrorResponse(nil, message, http.StatusInternalServerError)
		c.apiLogger.Error("API error",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", ctx.Request().URL.Path),
			logger.Error(err))
		return ctx.JSON(http.StatusInternalServerError, resp)
	}
}

// LoggingMiddleware logs every API request at debug level.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", ctx.Response().Status),
				logger.String("ip", ctx.RealIP()),
				logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, logger.String("request_id", id))
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}
			c.apiLogger.Debug("API request", fields...)
			return err
		}
	}
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	c.apiLogger.Info(fmt.Sprintf("API controller stopped after %s", time.Since(c.startTime).Round(time.Second)))
}
