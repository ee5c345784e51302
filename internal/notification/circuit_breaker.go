package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means sends flow normally.
	StateClosed CircuitState = iota
	// StateHalfOpen means a limited number of probe sends are allowed.
	StateHalfOpen
	// StateOpen means sends are rejected until the timeout elapses.
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitBreakerOpen is returned when the circuit breaker is open.
	ErrCircuitBreakerOpen = errors.Newf("circuit breaker is open").
				Component("notification").
				Category(errors.CategoryLimit).
				Build()
	// ErrTooManyRequests is returned when the half-open probe slots are taken.
	ErrTooManyRequests = errors.Newf("circuit breaker is half-open, too many requests").
				Component("notification").
				Category(errors.CategoryLimit).
				Build()
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures         int           // consecutive failures before opening
	Timeout             time.Duration // open → half-open delay
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// CircuitBreakerConfigFromSettings fills zero fields from the defaults.
func CircuitBreakerConfigFromSettings(s *conf.CircuitBreakerSettings) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if s.MaxFailures > 0 {
		cfg.MaxFailures = s.MaxFailures
	}
	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
	if s.HalfOpenMaxRequests > 0 {
		cfg.HalfOpenMaxRequests = s.HalfOpenMaxRequests
	}
	return cfg
}

// Validate checks if the circuit breaker configuration is valid.
func (c CircuitBreakerConfig) Validate() error {
	if c.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenMaxRequests < 1 {
		return fmt.Errorf("half_open_max_requests must be at least 1, got %d", c.HalfOpenMaxRequests)
	}
	return nil
}

// CircuitBreaker stops calling a gateway after repeated failures and lets a
// probe through once the timeout has passed.
type CircuitBreaker struct {
	config           CircuitBreakerConfig
	state            CircuitState
	failures         int
	lastStateChange  time.Time
	halfOpenRequests int
	mu               sync.Mutex
	metrics          *metrics.NotificationMetrics
	gatewayName      string
	log              logger.Logger
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker in the closed state. An invalid config
// is logged and used as given.
func NewCircuitBreaker(config CircuitBreakerConfig, m *metrics.NotificationMetrics, gatewayName string) *CircuitBreaker {
	log := logger.Global().Module("notification").With(logger.String("gateway", gatewayName))
	if err := config.Validate(); err != nil {
		log.Warn("circuit breaker config validation failed", logger.Error(err))
	}

	cb := &CircuitBreaker{
		config:      config,
		state:       StateClosed,
		metrics:     m,
		gatewayName: gatewayName,
		log:         log,
		now:         time.Now,
	}
	cb.lastStateChange = cb.now()
	if cb.metrics != nil {
		cb.metrics.UpdateCircuitBreakerState(gatewayName, int(StateClosed))
	}
	return cb
}

// Call executes fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return fmt.Errorf("%s gateway unavailable (%v, %d consecutive failures): %w",
			cb.gatewayName, cb.State(), cb.Failures(), err)
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		cb.reportFailures()
		return
	}

	// Caller cancellation says nothing about gateway health.
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	cb.reportFailures()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateOpen:
	}
}

func (cb *CircuitBreaker) reportFailures() {
	if cb.metrics != nil {
		cb.metrics.SetConsecutiveFailures(cb.gatewayName, cb.failures)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(newState CircuitState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	if newState != StateHalfOpen {
		cb.halfOpenRequests = 0
	}

	if cb.metrics != nil {
		cb.metrics.UpdateCircuitBreakerState(cb.gatewayName, int(newState))
	}
	cb.log.Info("circuit breaker state transition",
		logger.String("old_state", oldState.String()),
		logger.String("new_state", newState.String()),
		logger.Int("consecutive_failures", cb.failures))
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current number of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.setState(StateClosed)
	cb.reportFailures()
}
