package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeInternal            = "INTERNAL_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnresolvedReference = "UNRESOLVED_REFERENCE"
	CodeEmptyTrajectory     = "EMPTY_TRAJECTORY"
	CodeBakeInProgress      = "BAKE_IN_PROGRESS"
	CodeTransientFetch      = "TRANSIENT_FETCH"
	CodePermanentFetch      = "PERMANENT_FETCH"
	CodeCanceled            = "CANCELED"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with context
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	StatusCode int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithError wraps an underlying error
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Internal creates an internal error
func Internal(message string) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Validation creates a validation error
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Validationf creates a validation error from a format string
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// UnresolvedReference reports an object id that world state cannot resolve.
func UnresolvedReference(objectID string) *AppError {
	return New(CodeUnresolvedReference,
		fmt.Sprintf("object %q is not present in world state", objectID),
		http.StatusUnprocessableEntity).WithDetail("object_id", objectID)
}

// EmptyTrajectory reports a body with zero raw samples.
func EmptyTrajectory(objectID string) *AppError {
	return New(CodeEmptyTrajectory,
		fmt.Sprintf("no trajectory samples for %q", objectID),
		http.StatusUnprocessableEntity).WithDetail("object_id", objectID)
}

// BakeInProgress reports a bake slot that is already held.
func BakeInProgress(sceneID, objectID string) *AppError {
	return New(CodeBakeInProgress,
		fmt.Sprintf("bake already in progress for %s/%s", sceneID, objectID),
		http.StatusConflict).
		WithDetail("scene_id", sceneID).
		WithDetail("object_id", objectID)
}

// TransientFetch creates a retry-eligible physics source error
func TransientFetch(message string) *AppError {
	return New(CodeTransientFetch, message, http.StatusServiceUnavailable)
}

// PermanentFetch creates a terminal physics source error
func PermanentFetch(message string) *AppError {
	return New(CodePermanentFetch, message, http.StatusBadGateway)
}

// FetchNotFound is a permanent fetch error for a missing simulation or body.
func FetchNotFound(simulationID, bodyID string) *AppError {
	return New(CodePermanentFetch,
		fmt.Sprintf("body %q not found in simulation %q", bodyID, simulationID),
		http.StatusNotFound).
		WithDetail("simulation_id", simulationID).
		WithDetail("body_id", bodyID).
		WithDetail("reason", "not_found")
}

// Canceled creates an error for work abandoned because its context ended
func Canceled(err error) *AppError {
	return New(CodeCanceled, "operation canceled", 499).WithError(err)
}

// Unavailable reports an optional backend that is not configured or not reachable
func Unavailable(what string) *AppError {
	return New(CodeUnavailable, what+" is unavailable", http.StatusServiceUnavailable)
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetAppError extracts AppError from error if present
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetCode returns the error code, or CodeInternal for foreign errors
func GetCode(err error) string {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return CodeInternal
}

func hasCode(err error, code string) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error. Permanent fetch
// errors for a missing body count as not found.
func IsNotFound(err error) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == CodeNotFound ||
			(appErr.Code == CodePermanentFetch && appErr.Details["reason"] == "not_found")
	}
	return false
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsUnresolvedReference checks if the error is an unresolved reference error
func IsUnresolvedReference(err error) bool { return hasCode(err, CodeUnresolvedReference) }

// IsEmptyTrajectory checks if the error is an empty trajectory error
func IsEmptyTrajectory(err error) bool { return hasCode(err, CodeEmptyTrajectory) }

// IsBakeInProgress checks if the error is a bake guard rejection
func IsBakeInProgress(err error) bool { return hasCode(err, CodeBakeInProgress) }

// IsTransientFetch checks if the error is a transient fetch error
func IsTransientFetch(err error) bool { return hasCode(err, CodeTransientFetch) }

// IsPermanentFetch checks if the error is a permanent fetch error
func IsPermanentFetch(err error) bool { return hasCode(err, CodePermanentFetch) }

// IsCanceled checks if the error is a cancellation error
func IsCanceled(err error) bool { return hasCode(err, CodeCanceled) }

// IsRetryable reports whether a caller may retry the failed operation.
func IsRetryable(err error) bool {
	return IsTransientFetch(err) || IsBakeInProgress(err)
}
