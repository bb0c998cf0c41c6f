package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents different categories of errors
type ErrorKind string

const (
	// Measurement core kinds
	ErrorKindInput          ErrorKind = "input"
	ErrorKindDetection      ErrorKind = "detection"
	ErrorKindCalibration    ErrorKind = "calibration"
	ErrorKindInitialization ErrorKind = "initialization"

	// Transport kinds
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindInternal   ErrorKind = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(kind ErrorKind, status int, message string, cause error) *AppError {
	return &AppError{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInputError reports a missing, corrupt or undecodable image payload
func NewInputError(message string, cause error) *AppError {
	return newAppError(ErrorKindInput, http.StatusBadRequest, message, cause)
}

// NewDetectionError reports that no face or landmarks were found
func NewDetectionError(message string, cause error) *AppError {
	return newAppError(ErrorKindDetection, http.StatusUnprocessableEntity, message, cause)
}

// NewCalibrationError reports a supplied calibration hint whose reference could not be measured
func NewCalibrationError(message string, cause error) *AppError {
	return newAppError(ErrorKindCalibration, http.StatusUnprocessableEntity, message, cause)
}

// NewInitializationError reports that the landmark provider failed to load
func NewInitializationError(message string, cause error) *AppError {
	return newAppError(ErrorKindInitialization, http.StatusServiceUnavailable, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorKindValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newAppError(ErrorKindNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newAppError(ErrorKindTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewRateLimitError reports a client over its request budget
func NewRateLimitError(message string) *AppError {
	return newAppError(ErrorKindRateLimit, http.StatusTooManyRequests, message, nil)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorKindInternal, http.StatusInternalServerError, message, cause)
}

// IsKind checks if the error chain carries an AppError of a specific kind
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first AppError in the chain, or internal
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrorKindInternal
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
