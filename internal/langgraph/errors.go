package langgraph

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the requested thread does not exist.
	ErrNotFound = errors.New("langgraph: not found")
	// ErrConflict is returned when a thread with the same id already exists.
	ErrConflict = errors.New("langgraph: conflict")
)

// APIError is a non-2xx response from the agent service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("langgraph: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is maps status codes onto the package sentinels, so callers can use
// errors.Is(err, ErrNotFound) without inspecting the status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Retryable reports whether the failure is likely transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth retrying later: transport
// failures and retryable API statuses are, everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
