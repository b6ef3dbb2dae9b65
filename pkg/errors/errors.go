package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType classifies an error for callers and for HTTP mapping
type ErrorType string

const (
	// Tree/domain errors
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeInvalidKind   ErrorType = "INVALID_KIND"
	ErrorTypeCycleDetected ErrorType = "CYCLE_DETECTED"
	ErrorTypeMalformedTree ErrorType = "MALFORMED_TREE"

	// Application errors
	ErrorTypeInternal        ErrorType = "INTERNAL"
	ErrorTypeUnauthorized    ErrorType = "UNAUTHORIZED"
	ErrorTypeRateLimit       ErrorType = "RATE_LIMIT"
	ErrorTypePartialMutation ErrorType = "PARTIAL_MUTATION"

	// Infrastructure errors
	ErrorTypeStoreUnavailable ErrorType = "STORE_UNAVAILABLE"
)

// AppError is the error type carried across all layers
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
	Retryable  bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single error detail
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error for a missing node or resource
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewInvalidKindError creates an error for a structural rule violation,
// e.g. attempting to parent a node under a card
func NewInvalidKindError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidKind,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		StackTrace: captureStackTrace(),
	}
}

// NewCycleDetectedError creates an error for a move that would create a cycle
func NewCycleDetectedError(nodeID, newParentID string) *AppError {
	return &AppError{
		Type:       ErrorTypeCycleDetected,
		Message:    "move would create a cycle in the folder tree",
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
		Details: map[string]interface{}{
			"node_id":       nodeID,
			"new_parent_id": newParentID,
		},
	}
}

// NewMalformedTreeError creates an error for a traversal that exceeded the
// depth bound, indicating pre-existing corruption in the stored tree
func NewMalformedTreeError(nodeID string, depth int) *AppError {
	return &AppError{
		Type:       ErrorTypeMalformedTree,
		Message:    fmt.Sprintf("ancestor walk exceeded %d levels, tree is corrupted", depth),
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
		Details: map[string]interface{}{
			"node_id": nodeID,
		},
	}
}

// NewStoreUnavailableError creates an error for a failed store call
func NewStoreUnavailableError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeStoreUnavailable,
		Message:    fmt.Sprintf("store operation '%s' failed", operation),
		Cause:      err,
		Retryable:  true,
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// NewPartialMutationError creates an error for a multi-step write that
// succeeded partway, leaving the tree inconsistent pending reconciliation.
// step names the write that failed; completed lists the writes that stuck.
func NewPartialMutationError(step string, completed []string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypePartialMutation,
		Message:    fmt.Sprintf("mutation failed at step '%s', tree needs reconcile", step),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
		Details: map[string]interface{}{
			"failed_step":     step,
			"completed_steps": completed,
		},
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
		StackTrace: captureStackTrace(),
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		Retryable:  true,
		HTTPStatus: http.StatusTooManyRequests,
		StackTrace: captureStackTrace(),
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsInvalidKind checks if an error is an invalid kind error
func IsInvalidKind(err error) bool {
	return IsType(err, ErrorTypeInvalidKind)
}

// IsCycleDetected checks if an error is a cycle detection error
func IsCycleDetected(err error) bool {
	return IsType(err, ErrorTypeCycleDetected)
}

// IsMalformedTree checks if an error is a malformed tree error
func IsMalformedTree(err error) bool {
	return IsType(err, ErrorTypeMalformedTree)
}

// IsStoreUnavailable checks if an error is a store availability error
func IsStoreUnavailable(err error) bool {
	return IsType(err, ErrorTypeStoreUnavailable)
}

// IsPartialMutation checks if an error is a partial mutation error
func IsPartialMutation(err error) bool {
	return IsType(err, ErrorTypePartialMutation)
}

// IsRetryable reports whether the operation that produced err can be retried
// without first running a reconcile
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
