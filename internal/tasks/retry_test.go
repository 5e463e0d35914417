package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	th "github.com/desertthunder/spotexport/internal/testing"
)

// recordingSleeper returns a Sleeper that records requested waits without blocking.
func recordingSleeper(waits *[]time.Duration) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

// scripted returns errs in order, then pages of limit items.
func scripted(errs ...error) (PageFunc[int], *[]int) {
	var offsets []int
	fetch := func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
		offsets = append(offsets, offset)
		if len(offsets) <= len(errs) {
			return nil, errs[len(offsets)-1]
		}
		return &services.Page[int]{Items: seq(limit), Offset: offset}, nil
	}
	return fetch, &offsets
}

func TestWithRetry(t *testing.T) {
	policy := RetryPolicy{Backoff: 3 * time.Second, MaxRetries: 3}

	t.Run("retries at the same offset", func(t *testing.T) {
		fetch, offsets := scripted(th.TransientError(http.StatusTooManyRequests), th.TransientError(http.StatusBadGateway))
		var waits []time.Duration
		var attempts []int

		wrapped := withRetry(fetch, policy, recordingSleeper(&waits), func(offset, attempt int, wait time.Duration, err error) {
			attempts = append(attempts, attempt)
		})

		page, err := wrapped(context.Background(), 5, 40)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Len() != 5 {
			t.Errorf("expected 5 items, got %d", page.Len())
		}
		if want := []int{40, 40, 40}; !slices.Equal(*offsets, want) {
			t.Errorf("offsets = %v, want %v", *offsets, want)
		}
		if want := []time.Duration{3 * time.Second, 3 * time.Second}; !slices.Equal(waits, want) {
			t.Errorf("waits = %v, want %v", waits, want)
		}
		if want := []int{1, 2}; !slices.Equal(attempts, want) {
			t.Errorf("attempts = %v, want %v", attempts, want)
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		transient := th.TransientError(http.StatusServiceUnavailable)
		fetch, offsets := scripted(transient, transient, transient, transient, transient)
		var waits []time.Duration

		_, err := withRetry(fetch, policy, recordingSleeper(&waits), nil)(context.Background(), 50, 100)
		if !errors.Is(err, shared.ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected last cause to be preserved, got %v", err)
		}
		if len(*offsets) != 4 {
			t.Errorf("expected 1 attempt plus 3 retries, got %d calls", len(*offsets))
		}
		if len(waits) != 3 {
			t.Errorf("expected 3 waits, got %d", len(waits))
		}
	})

	t.Run("zero budget retries until success", func(t *testing.T) {
		errs := make([]error, 25)
		for i := range errs {
			errs[i] = th.TransientError(http.StatusInternalServerError)
		}
		fetch, offsets := scripted(errs...)
		var waits []time.Duration

		_, err := withRetry(fetch, RetryPolicy{Backoff: time.Second}, recordingSleeper(&waits), nil)(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(*offsets) != 26 {
			t.Errorf("expected 26 calls, got %d", len(*offsets))
		}
	})

	t.Run("non-transient errors are not retried", func(t *testing.T) {
		tt := []struct {
			name string
			err  error
			want error
		}{
			{name: "unauthorized", err: &services.APIError{StatusCode: http.StatusUnauthorized}, want: shared.ErrTokenExpired},
			{name: "forbidden", err: &services.APIError{StatusCode: http.StatusForbidden}, want: shared.ErrAuthFailed},
			{name: "not found", err: &services.APIError{StatusCode: http.StatusNotFound}, want: shared.ErrPlaylistNotFound},
			{name: "bad request", err: &services.APIError{StatusCode: http.StatusBadRequest}, want: shared.ErrInvalidArgument},
			{name: "not authenticated", err: shared.ErrNotAuthenticated, want: shared.ErrNotAuthenticated},
			{name: "unknown", err: errors.New("boom"), want: nil},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				fetch, offsets := scripted(tc.err)
				var waits []time.Duration

				_, err := withRetry(fetch, policy, recordingSleeper(&waits), nil)(context.Background(), 50, 0)
				if err == nil {
					t.Fatal("expected error")
				}
				if tc.want != nil && !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
				if errors.Is(err, shared.ErrRetriesExhausted) {
					t.Errorf("non-transient error should not exhaust retries: %v", err)
				}
				if len(*offsets) != 1 || len(waits) != 0 {
					t.Errorf("expected a single call and no waits, got %d calls and %d waits", len(*offsets), len(waits))
				}
			})
		}
	})

	t.Run("honors longer retry-after", func(t *testing.T) {
		limited := &services.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 10 * time.Second}
		short := &services.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: time.Second}
		fetch, _ := scripted(limited, short)
		var waits []time.Duration

		if _, err := withRetry(fetch, policy, recordingSleeper(&waits), nil)(context.Background(), 50, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []time.Duration{10 * time.Second, 3 * time.Second}; !slices.Equal(waits, want) {
			t.Errorf("waits = %v, want %v", waits, want)
		}
	})

	t.Run("caps retry-after", func(t *testing.T) {
		stalled := &services.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 6 * time.Hour}
		fetch, _ := scripted(stalled)
		var waits, reported []time.Duration

		onRetry := func(offset, attempt int, wait time.Duration, err error) {
			reported = append(reported, wait)
		}
		if _, err := withRetry(fetch, policy, recordingSleeper(&waits), onRetry)(context.Background(), 50, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []time.Duration{MaxRetryAfter}; !slices.Equal(waits, want) {
			t.Errorf("waits = %v, want %v", waits, want)
		}
		if !slices.Equal(reported, waits) {
			t.Errorf("reported waits = %v, want %v", reported, waits)
		}
	})

	t.Run("canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		fetch, offsets := scripted(th.TransientError(http.StatusBadGateway))
		sleep := func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}

		_, err := withRetry(fetch, policy, sleep, nil)(ctx, 50, 0)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(*offsets) != 1 {
			t.Errorf("expected no request after cancellation, got %d calls", len(*offsets))
		}
	})

	t.Run("wrapped api request error is transient", func(t *testing.T) {
		fetch, offsets := scripted(fmt.Errorf("%w: connection reset", shared.ErrAPIRequest))
		var waits []time.Duration

		if _, err := withRetry(fetch, policy, recordingSleeper(&waits), nil)(context.Background(), 1, 7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []int{7, 7}; !slices.Equal(*offsets, want) {
			t.Errorf("offsets = %v, want %v", *offsets, want)
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	tt := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{name: "default", policy: DefaultRetryPolicy()},
		{name: "retry forever without waiting", policy: RetryPolicy{}},
		{name: "negative backoff", policy: RetryPolicy{Backoff: -time.Second, MaxRetries: 3}, wantErr: true},
		{name: "negative budget", policy: RetryPolicy{Backoff: time.Second, MaxRetries: -1}, wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.wantErr && !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	t.Run("zero duration", func(t *testing.T) {
		if err := sleepContext(context.Background(), 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("sleep did not return on cancellation")
		}
	})

	t.Run("elapses", func(t *testing.T) {
		if err := sleepContext(context.Background(), time.Millisecond); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestPaced(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		fetch, _ := scripted()
		if got := paced(fetch, 0); got == nil {
			t.Fatal("expected fetch to be returned")
		}
	})

	t.Run("spaces requests", func(t *testing.T) {
		fetch, offsets := scripted()
		pause := 20 * time.Millisecond
		wrapped := paced(fetch, pause)

		start := time.Now()
		for i := range 3 {
			if _, err := wrapped(context.Background(), 1, i); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		elapsed := time.Since(start)

		if len(*offsets) != 3 {
			t.Errorf("expected 3 calls, got %d", len(*offsets))
		}
		if elapsed < 2*pause-5*time.Millisecond {
			t.Errorf("expected at least %v between 3 requests, took %v", 2*pause, elapsed)
		}
	})

	t.Run("canceled while waiting", func(t *testing.T) {
		fetch, offsets := scripted()
		wrapped := paced(fetch, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		if _, err := wrapped(ctx, 1, 0); err != nil {
			t.Fatalf("first request should not wait: %v", err)
		}
		cancel()

		if _, err := wrapped(ctx, 1, 1); err == nil {
			t.Error("expected error after cancellation")
		}
		if len(*offsets) != 1 {
			t.Errorf("expected 1 call, got %d", len(*offsets))
		}
	})
}
