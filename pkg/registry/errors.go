package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure marks transient failures: transport errors, timeouts,
	// 5xx responses and an open circuit breaker.
	ErrNetworkFailure = errors.New("registry: network failure")

	// ErrServiceUnavailable is returned when the server has no push key configured.
	ErrServiceUnavailable = errors.New("registry: push service not configured")

	// ErrCircuitOpen is returned without a request when the breaker is open.
	ErrCircuitOpen = errors.New("registry: circuit breaker is open")

	// ErrDeviceGone is returned by a Pusher when the push service reports the
	// endpoint as expired; the registration is dropped.
	ErrDeviceGone = errors.New("registry: push endpoint gone")

	// ErrRateLimited is returned when the registry throttles the caller.
	// It is not retried.
	ErrRateLimited = errors.New("registry: rate limited")

	// ErrStorage is returned by a persisted Memory registry when its state
	// cannot be loaded or saved.
	ErrStorage = errors.New("registry: storage failure")

	ErrNotFound       = errors.New("registry: not found")
	ErrInvalidRequest = errors.New("registry: invalid request")
	ErrInvalidBaseURL = errors.New("registry: invalid base URL")
)

// HTTPError represents a non-2xx HTTP response from the registry.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}
