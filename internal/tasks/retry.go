package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultPageSize     = 50
	DefaultPagePause    = 500 * time.Millisecond
	DefaultRetryBackoff = 3 * time.Second
	DefaultMaxRetries   = 10

	// MaxRetryAfter caps the wait requested by a rate-limited response.
	MaxRetryAfter = 5 * time.Minute
)

// RetryPolicy controls how a failed page request is repeated.
//
// Only transient failures are retried, always at the same offset. MaxRetries is the
// per-page budget; 0 retries until the context is canceled.
type RetryPolicy struct {
	Backoff    time.Duration
	MaxRetries int
}

// DefaultRetryPolicy waits 3s between attempts and gives up on a page after 10 retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: DefaultRetryBackoff, MaxRetries: DefaultMaxRetries}
}

// Validate rejects a negative backoff or retry budget.
func (p RetryPolicy) Validate() error {
	if p.Backoff < 0 {
		return fmt.Errorf("%w: retry backoff cannot be negative, got %v", shared.ErrInvalidArgument, p.Backoff)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative, got %d", shared.ErrInvalidArgument, p.MaxRetries)
	}
	return nil
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withRetry wraps fetch so transient failures are repeated at the same offset.
//
// onRetry, if set, is called before each wait with the 1-based retry number and the wait.
// A server-supplied Retry-After longer than the backoff replaces it for that wait, up to [MaxRetryAfter].
func withRetry[T any](fetch PageFunc[T], policy RetryPolicy, sleep Sleeper, onRetry func(offset, attempt int, wait time.Duration, err error)) PageFunc[T] {
	if sleep == nil {
		sleep = sleepContext
	}

	return func(ctx context.Context, limit, offset int) (*services.Page[T], error) {
		for retries := 0; ; retries++ {
			page, err := fetch(ctx, limit, offset)
			if err == nil {
				return page, nil
			}
			if !shared.IsTransient(err) {
				return nil, err
			}
			if policy.MaxRetries > 0 && retries >= policy.MaxRetries {
				return nil, fmt.Errorf("%w: offset %d failed %d times: %w", shared.ErrRetriesExhausted, offset, retries+1, err)
			}

			wait := policy.Backoff
			var apiErr *services.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
				wait = min(apiErr.RetryAfter, max(MaxRetryAfter, policy.Backoff))
			}

			if onRetry != nil {
				onRetry(offset, retries+1, wait, err)
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
}

// paced wraps fetch so consecutive requests are at least pause apart.
// The first request is not delayed. A non-positive pause disables pacing.
func paced[T any](fetch PageFunc[T], pause time.Duration) PageFunc[T] {
	if pause <= 0 {
		return fetch
	}

	limiter := rate.NewLimiter(rate.Every(pause), 1)
	return func(ctx context.Context, limit, offset int) (*services.Page[T], error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return fetch(ctx, limit, offset)
	}
}
