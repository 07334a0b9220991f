package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Collaborator errors
	ErrUnauthorized       = fmt.Errorf("music access not authorized")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrNetwork            = fmt.Errorf("network error")
	ErrInvalidResponse    = fmt.Errorf("invalid response")
	ErrNotFound           = fmt.Errorf("record not found")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RateLimitError is returned when a collaborator answers 429.
//
// It matches [ErrRateLimited] with [errors.Is]. RetryAfter is zero when the response carried no hint.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Source)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// APIError is a non-2xx response that is neither an auth failure nor a rate limit.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Source, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return ErrAPIRequest
}

// IsRateLimited reports whether err, or any error it wraps, is a rate limit condition.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnauthorized reports whether err is an authorization failure against the music source.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
