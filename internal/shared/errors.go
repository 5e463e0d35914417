package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRetriesExhausted   = fmt.Errorf("retries exhausted")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Export errors
	ErrMapping    = fmt.Errorf("mapping failed")
	ErrFileWrite  = fmt.Errorf("file write failed")
	ErrUnexpected = fmt.Errorf("unexpected error")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsAuthError reports whether err means the session is unusable and must not be retried.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNotAuthenticated)
}

// IsTransient reports whether a failed remote call may succeed when repeated unchanged.
//
// Only [ErrAPIRequest] failures qualify, and never ones that also carry an authentication,
// not-found or invalid-argument cause, or that already used up their retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRetriesExhausted) {
		return false
	}
	if IsAuthError(err) || errors.Is(err, ErrPlaylistNotFound) || errors.Is(err, ErrInvalidArgument) {
		return false
	}
	return errors.Is(err, ErrAPIRequest)
}

// IsKnown reports whether err already matches one of the classified export failures.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrAPIRequest, ErrRetriesExhausted, ErrPlaylistNotFound, ErrServiceUnavailable,
		ErrAuthFailed, ErrNotAuthenticated, ErrTokenExpired, ErrTimeout,
		ErrMapping, ErrFileWrite, ErrUnexpected,
		ErrMissingArgument, ErrInvalidArgument, ErrMissingConfig, ErrInvalidConfig, ErrMissingCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
