package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Exit codes for edgerelay
const (
	ExitSuccess             = 0
	ExitGeneralError        = 1
	ExitConfigError         = 2
	ExitInstanceUnavailable = 3
	ExitForwardFailed       = 4
	ExitRuntimeError        = 5
	ExitUnknownInstance     = 6
)

// RelayError is the base error type for edgerelay
type RelayError struct {
	Code    int
	Status  int
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *RelayError) ExitCode() int {
	return e.Code
}

// HTTPStatus returns the status code a caller receives for this error
func (e *RelayError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// New creates a new RelayError
func New(code int, status int, message string) *RelayError {
	return &RelayError{
		Code:    code,
		Status:  status,
		Message: message,
	}
}

// Wrap wraps an existing error with a RelayError
func Wrap(code int, status int, message string, cause error) *RelayError {
	return &RelayError{
		Code:    code,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ConfigError returns an error for missing or unreadable configuration
func ConfigError(message string, cause error) *RelayError {
	return Wrap(ExitConfigError, http.StatusInternalServerError, message, cause)
}

// InstanceUnavailable returns an error when the backend instance cannot be
// started or does not become ready
func InstanceUnavailable(key string, cause error) *RelayError {
	return Wrap(ExitInstanceUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("instance %s unavailable", key), cause)
}

// ForwardFailed returns an error for a failed exchange with a resolved instance
func ForwardFailed(cause error) *RelayError {
	return Wrap(ExitForwardFailed, http.StatusBadGateway, "forwarding to instance failed", cause)
}

// RuntimeError returns an error for runtime operations
func RuntimeError(op string, cause error) *RelayError {
	return Wrap(ExitRuntimeError, http.StatusServiceUnavailable, fmt.Sprintf("runtime %s failed", op), cause)
}

// UnknownInstance returns an error for a key the registry does not serve
func UnknownInstance(key string) *RelayError {
	return New(ExitUnknownInstance, http.StatusInternalServerError, fmt.Sprintf("unknown instance key: %s", key))
}

// GetExitCode extracts the exit code from an error. A nil error is success.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.ExitCode()
	}
	return ExitGeneralError
}

// HTTPStatus extracts the caller-facing status from an error.
// Errors that are not RelayErrors map to 500.
func HTTPStatus(err error) int {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
