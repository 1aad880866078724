// Package middleware provides HTTP middleware for the intake service.
//
// This file contains a small structured error type that the middleware in
// this package use to write their error responses; it is separate from
// the handler-facing infrastructure/errors package.
package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code.
type ErrorCode string

const (
	ErrCodeInternal ErrorCode = "SVC_3001"
	ErrCodeTooLarge ErrorCode = "VAL_1004"
	ErrCodeTimeout  ErrorCode = "SVC_3006"
)

// ServiceError represents a structured error with code, message, and HTTP status.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newServiceError(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func wrapServiceError(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// errInternal creates an internal server error.
func errInternal(message string, err error) *ServiceError {
	return wrapServiceError(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

// errTooLarge creates a request-too-large error.
func errTooLarge(limitBytes int64) *ServiceError {
	return newServiceError(ErrCodeTooLarge, "request body too large", http.StatusRequestEntityTooLarge).
		WithDetails("limit_bytes", limitBytes)
}

// errTimeout creates a request timeout error.
func errTimeout(timeoutSeconds float64) *ServiceError {
	return newServiceError(ErrCodeTimeout, "request timed out", http.StatusGatewayTimeout).
		WithDetails("timeout_seconds", timeoutSeconds)
}

// getServiceError extracts a ServiceError from an error chain.
func getServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// writeServiceError writes se as a JSON error response.
func writeServiceError(w http.ResponseWriter, se *ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   se.Message,
		"code":    se.Code,
		"details": se.Details,
	})
}
