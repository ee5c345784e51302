package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/errors"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Minute, HalfOpenMaxRequests: 1}, nil, "fake")
	failing := func(context.Context) error { return errors.NewStd("boom") }

	for range 3 {
		require.Error(t, cb.Call(context.Background(), failing))
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(context.Background(), func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called, "open breaker must not call through")
	assert.True(t, errors.Is(err, ErrCircuitBreakerOpen))
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1}, nil, "fake")
	clock := time.Now()
	cb.now = func() time.Time { return clock }

	require.Error(t, cb.Call(context.Background(), func(context.Context) error { return errors.NewStd("boom") }))
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Call(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1}, nil, "fake")
	clock := time.Now()
	cb.now = func() time.Time { return clock }

	boom := func(context.Context) error { return errors.NewStd("boom") }
	require.Error(t, cb.Call(context.Background(), boom))
	clock = clock.Add(2 * time.Minute)
	require.Error(t, cb.Call(context.Background(), boom))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1}, nil, "fake")

	err := cb.Call(context.Background(), func(context.Context) error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestCircuitBreakerConfig_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultCircuitBreakerConfig().Validate())
	assert.Error(t, CircuitBreakerConfig{MaxFailures: 0, Timeout: time.Second, HalfOpenMaxRequests: 1}.Validate())
	assert.Error(t, CircuitBreakerConfig{MaxFailures: 1, Timeout: 0, HalfOpenMaxRequests: 1}.Validate())
	assert.Error(t, CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second}.Validate())
}
