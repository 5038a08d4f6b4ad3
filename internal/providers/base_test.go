package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/ratelimit"
)

func TestBaseProvider_RetrySucceedsAfterRetryableFailures(t *testing.T) {
	b := NewBaseProvider("test", nil)
	b.retryDelay = time.Millisecond

	attempts := 0
	err := b.Retry(context.Background(), func(error) bool { return true }, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestBaseProvider_RetryStopsOnNonRetryable(t *testing.T) {
	b := NewBaseProvider("test", nil)
	b.retryDelay = time.Millisecond

	attempts := 0
	err := b.Retry(context.Background(), func(error) bool { return false }, func(context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, legionerr.Is(err, legionerr.KindProvider))
}

func TestBaseProvider_RetryExhaustsMaxAttempts(t *testing.T) {
	b := NewBaseProvider("test", nil)
	b.retryDelay = time.Millisecond
	b.maxRetries = 2

	attempts := 0
	err := b.Retry(context.Background(), func(error) bool { return true }, func(context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestBaseProvider_RetryThrottlesThroughLimiter(t *testing.T) {
	bucket := ratelimit.NewBucket(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 1, Enabled: true})
	b := NewBaseProvider("test", bucket)

	calls := 0
	err := b.Retry(context.Background(), func(error) bool { return false }, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBaseProvider_RetryRespectsCancellation(t *testing.T) {
	b := NewBaseProvider("test", nil)
	b.retryDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Retry(ctx, func(error) bool { return true }, func(context.Context) error {
		return errors.New("transient")
	})
	require.Error(t, err)
}
