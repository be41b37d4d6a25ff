package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport matches failures where no HTTP response was received.
	ErrTransport = errors.New("transport error")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
)

// RequestError is returned by every Client operation that fails. Status is
// zero when the transport itself failed. A response whose body cannot be
// decoded keeps its status and carries the decode error in Err.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s returned status %d: %s: %v", e.Method, e.Path, e.Status, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Status == 0
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// IsRetryable reports whether repeating the request may succeed: transport
// failures, timeouts, throttling and server errors. Cancellation and other
// client errors are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var re *RequestError
	if !errors.As(err, &re) {
		return true
	}
	switch {
	case re.Status == 0:
		return true
	case re.Status == http.StatusRequestTimeout, re.Status == http.StatusTooManyRequests:
		return true
	case re.Status >= 500:
		return true
	}
	return false
}
