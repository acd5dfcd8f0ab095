// Package errors defines the sentinel errors shared across the pipeline and
// a status-carrying wrapper for the streaming service's HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRecord    = errors.New("invalid event record")
	ErrNoInput          = errors.New("no input files matched")
	ErrStoreUnavailable = errors.New("yield store unavailable")
	ErrCheckpointFailed = errors.New("checkpoint operation failed")
	ErrSnapshotCorrupt  = errors.New("histogram snapshot corrupt")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
)

// AppError wraps a sentinel with a human-readable message and the HTTP
// status the streaming API should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with Sprintf-style message formatting.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status the API should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoInput):
		return http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
