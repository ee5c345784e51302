package notification

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/observability/metrics"
)

// GuardedGateway decorates a Gateway with an outbound rate limit, a circuit
// breaker and send metrics. Either guard may be nil.
type GuardedGateway struct {
	inner   Gateway
	breaker *CircuitBreaker
	limiter *rate.Limiter
	metrics *metrics.NotificationMetrics
}

// NewGuardedGateway wraps inner according to settings.
func NewGuardedGateway(inner Gateway, settings *conf.GatewaySettings, m *metrics.NotificationMetrics) *GuardedGateway {
	g := &GuardedGateway{inner: inner, metrics: m}
	if settings.CircuitBreaker.Enabled {
		g.breaker = NewCircuitBreaker(CircuitBreakerConfigFromSettings(&settings.CircuitBreaker), m, inner.Name())
	}
	if settings.RateLimit.Enabled && settings.RateLimit.PerSecond > 0 {
		burst := settings.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit.PerSecond), burst)
	}
	return g
}

// Name implements Gateway.
func (g *GuardedGateway) Name() string { return g.inner.Name() }

// Breaker returns the circuit breaker, or nil when disabled.
func (g *GuardedGateway) Breaker() *CircuitBreaker { return g.breaker }

// Send implements Gateway.
func (g *GuardedGateway) Send(ctx context.Context, from, to, body string) (Receipt, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		if g.metrics != nil {
			g.metrics.RecordRateLimited(g.Name())
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return Receipt{}, errors.New(err).
				Component("notification").
				Category(errors.CategoryLimit).
				Context("gateway", g.Name()).
				Build()
		}
	}

	var receipt Receipt
	send := func(ctx context.Context) error {
		var err error
		receipt, err = g.inner.Send(ctx, from, to, body)
		return err
	}

	start := time.Now()
	var err error
	if g.breaker != nil {
		err = g.breaker.Call(ctx, send)
	} else {
		err = send(ctx)
	}

	if g.metrics != nil {
		status := receipt.Status
		if err != nil {
			status = "error"
			g.metrics.RecordGatewayError(g.Name(), errorCategory(err))
		}
		g.metrics.RecordSend(g.Name(), status, time.Since(start))
	}
	return receipt, err
}

func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}
