package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	var states []int
	config := DefaultCircuitBreakerConfig("store")
	config.FailureThreshold = 2
	cb := NewCircuitBreaker(config, nil, func(_ string, state int) {
		states = append(states, state)
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := cb.Run(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)

	called := false
	err := cb.Run(context.Background(), func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("kafka"), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Run(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerRegistry(t *testing.T) {
	registry := NewCircuitBreakerRegistry(nil, nil)
	a := registry.Get("mongodb")
	assert.Same(t, a, registry.Get("mongodb"))

	status := registry.Status()
	require.Contains(t, status, "mongodb")
	assert.Equal(t, "closed", status["mongodb"].State)
}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return errors.New("busy")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		permanent := errors.New("constraint")
		config := fastRetry(5)
		config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
		calls := 0
		err := Retry(context.Background(), config, func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		value, err := RetryWithResult(context.Background(), fastRetry(2), func() (int, error) {
			return 0, errors.New("down")
		})
		assert.Zero(t, value)
		assert.EqualError(t, err, "max retries (2) exceeded: down")
	})
}
