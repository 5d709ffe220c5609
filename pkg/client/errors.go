package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Common errors returned by the client.
var (
	// ErrNotFound is returned when the SRD API answers 404 for a resource.
	ErrNotFound = errors.New("resource not found")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// UpstreamError represents a failed SRD API call with additional context.
type UpstreamError struct {
	// StatusCode is the upstream HTTP status, 0 for transport failures.
	StatusCode int
	ErrorClass ErrorClass
	Detail     string
	// RetryAfter is set when the call was refused inside an upstream
	// rate limit window.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("SRD %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Detail, e.Err)
	}
	return fmt.Sprintf("SRD %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Detail)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNotFound) hold for upstream 404s.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.ErrorClass == ErrorClassNotFound
}

// Timeout reports whether the failure was a per-call timeout.
func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassRateLimit:
		// 429 waits out the Retry-After window first
		return true
	case ErrorClassNetwork:
		// Network errors should be retried
		return true
	default:
		// 4xx, 404 and decode errors are final
		return false
	}
}
