package providers

import (
	"context"
	"time"

	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/ratelimit"
)

// BaseProvider carries the retry and throttling behavior common to every
// concrete adapter, the way the teacher's internal/agent/providers.BaseProvider
// does: adapters embed it and call Retry around their transport call.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
	limiter    *ratelimit.Bucket
}

// NewBaseProvider builds a BaseProvider with sane linear-backoff defaults.
func NewBaseProvider(name string, limiter *ratelimit.Bucket) BaseProvider {
	return BaseProvider{
		name:       name,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
		limiter:    limiter,
	}
}

// Name returns the provider's identifier.
func (b BaseProvider) Name() string { return b.name }

// Retry runs op, retrying with linear backoff while isRetryable(err) is
// true, up to maxRetries attempts. It throttles every attempt (including
// the first) through the attached rate limiter when one is configured.
func (b BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return legionerr.ProviderErr(err)
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == b.maxRetries {
			return legionerr.ProviderErr(lastErr)
		}

		select {
		case <-time.After(b.retryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			return legionerr.ProviderErr(ctx.Err())
		}
	}
	return legionerr.ProviderErr(lastErr)
}
