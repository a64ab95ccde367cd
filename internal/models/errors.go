package models

import (
	"errors"
	"fmt"
	"net/http"
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NetworkError covers connectivity failures and timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	msg := fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable reports whether the failure is on the server side. 4xx responses
// mean the request itself is wrong and repeating it will not help.
func (e *ServerError) Retryable() bool {
	return e.Status >= 500
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrEpochStale marks a response issued for a filter epoch that has since been
// abandoned. It is dropped internally and never surfaced.
var ErrEpochStale = errors.New("response belongs to an abandoned epoch")

func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Retryable()
	}
	return false
}
