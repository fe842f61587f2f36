package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/clonesync/csync/pkg/retry"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrFileTooLarge rejects uploads over the hard size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrEndpointUnavailable marks a 404 from an endpoint that is not
	// deployed in this environment. Callers may choose a degraded-mode
	// fallback instead of failing outright.
	ErrEndpointUnavailable = errors.New("endpoint unavailable")
)

// ServerError is a non-2xx response with its status and body message.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrEndpointUnavailable) match 404 responses.
func (e *ServerError) Is(target error) bool {
	return target == ErrEndpointUnavailable && e.StatusCode == 404
}

// TaskFailedError carries the backend-provided failure message of a task
// that reached the failed state.
type TaskFailedError struct {
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "task failed"
	}
	return fmt.Sprintf("task %s: %s", e.TaskID, msg)
}

// IsNetworkError reports whether err is a transport-level failure (as
// opposed to a response the server actually produced). Only these are safe
// to retry: a ServerError means the request arrived.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var se *ServerError
	if errors.As(err, &se) {
		return false
	}
	if errors.Is(err, ErrFileTooLarge) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return retry.IsRetryable(err)
}
