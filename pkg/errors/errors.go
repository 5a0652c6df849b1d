// Package errors provides standardized error handling for the simctl client.
// It implements structured error types with proper wrapping and classification
// so the HTTP retry layer, the stream channel, and the CLI can all agree on
// what a given failure means.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common error conditions
var (
	// Job-related errors
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidJobConfig = errors.New("invalid job configuration")

	// Storage-related errors
	ErrStorageFailed = errors.New("storage operation failed")

	// Stream-related errors
	ErrStreamClosed       = errors.New("stream channel is closed")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrNoJobTracked       = errors.New("no job id tracked for streaming")

	// Transport-related errors
	ErrRequestTimeout = errors.New("request timed out")
	ErrUnreachable    = errors.New("backend unreachable")
)

// APIError represents an error response from the training backend.
// StatusCode 0 means the request never produced a response (network failure
// or timeout); those and 5xx responses are retryable, 4xx are not.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failed request may be reissued
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// JobError represents an error related to a specific job
type JobError struct {
	JobID     string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: operation %s: %v", e.JobID, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// StorageError represents an error from the key-value store
type StorageError struct {
	Key       string
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// StreamError represents an error on the live metrics channel
type StreamError struct {
	JobID     string
	Operation string
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: operation %s: %v", e.JobID, e.Operation, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors

func NewAPIError(statusCode int, message string, err error) error {
	return &APIError{StatusCode: statusCode, Message: message, Err: err}
}

func WrapJobError(jobID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{JobID: jobID, Operation: operation, Err: err}
}

func WrapStorageError(key, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Key: key, Operation: operation, Err: err}
}

func WrapStreamError(jobID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{JobID: jobID, Operation: operation, Err: err}
}

func WrapConfigError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Field: field, Err: err}
}

// Error classification functions

func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}

// IsRetryable reports whether the request that produced err may be retried.
// Network failures, timeouts and 5xx responses are retryable; everything
// else, including all 4xx responses, is not.
func IsRetryable(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}

// IsClientError reports whether err is a 4xx backend response
func IsClientError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode >= 400 && ae.StatusCode < 500
	}
	return false
}

// IsServerError reports whether err is a 5xx backend response
func IsServerError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode >= 500 && ae.StatusCode < 600
	}
	return false
}

// IsTransportError reports whether err is a failure that produced no response
func IsTransportError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 0
	}
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrRequestTimeout)
}

func IsNotFoundError(err error) bool {
	if errors.Is(err, ErrJobNotFound) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// Context-aware error handling
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StatusCode extracts the backend HTTP status from err, or 0 when the error
// did not come from an HTTP response.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// UserMessage maps an error to the message shown to the user for a failed
// job submission. Each status the backend is known to produce gets a
// specific, actionable message.
func UserMessage(err error) string {
	var ae *APIError
	if !errors.As(err, &ae) {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	switch ae.StatusCode {
	case 0:
		return "could not reach the training backend; check the configured base URL and your network"
	case http.StatusBadRequest:
		return "the backend rejected the request; check the world archive and hyperparameters"
	case http.StatusNotFound:
		return "the backend does not know this job; it may have been purged"
	case http.StatusRequestEntityTooLarge:
		return "the world archive is too large for the backend to accept"
	case http.StatusInternalServerError:
		return "the training backend failed internally; try again shortly"
	case http.StatusServiceUnavailable:
		return "the training backend is unavailable; try again shortly"
	default:
		if ae.Message != "" {
			return ae.Message
		}
		return ae.Error()
	}
}
