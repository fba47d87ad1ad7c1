package errors

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is returned when local admission is denied for a bucket.
// Callers decide whether to wait for ResetAt or abort.
type RateLimitError struct {
	Provider  string
	Route     string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s %s: %d/%d remaining (resets at %s)",
		e.Provider, e.Route, e.Remaining, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// IsRateLimitError checks if an error is a RateLimitError anywhere in its chain.
func IsRateLimitError(err error) bool {
	var rl *RateLimitError

	return errors.As(err, &rl)
}

// TransportError is returned when a request fails at the connection or timeout
// level before an application response is available.
type TransportError struct {
	Target  string
	Elapsed time.Duration
	Timeout bool
	Cause   error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	kind := "transport failure"
	if e.Timeout {
		kind = "timeout"
	}

	return fmt.Sprintf("%s fetching %s after %s: %v", kind, e.Target, e.Elapsed, e.Cause)
}

// Unwrap returns the underlying error cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTransportError checks if an error is a TransportError anywhere in its chain.
func IsTransportError(err error) bool {
	var te *TransportError

	return errors.As(err, &te)
}

// UpstreamError is returned for a non-2xx application response. BodyExcerpt
// holds a truncated copy of the response body for diagnostics.
type UpstreamError struct {
	Target      string
	StatusCode  int
	BodyExcerpt string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d from %s: %s", e.StatusCode, e.Target, e.BodyExcerpt)
}

// IsUpstreamError checks if an error is an UpstreamError anywhere in its chain.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError

	return errors.As(err, &ue)
}
