// Package errors provides unified structured error handling for the label
// verification pipeline: a stable error code, an HTTP status mapping, and an
// optional wrapped cause.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// Validation errors (1xxx) — bad upload, bad field; no job created.
	ErrCodeInvalidInput     ErrorCode = "VAL_1001"
	ErrCodeMissingParameter ErrorCode = "VAL_1002"
	ErrCodeInvalidFormat    ErrorCode = "VAL_1003"
	ErrCodeTooLarge         ErrorCode = "VAL_1004"

	// Resource errors (2xxx)
	ErrCodeNotFound      ErrorCode = "RES_2001"
	ErrCodeAlreadyExists ErrorCode = "RES_2002"
	ErrCodeConflict      ErrorCode = "RES_2003"

	// Transient infrastructure errors (3xxx) — DB/Redis/blob/HTTP; retryable.
	ErrCodeInternal      ErrorCode = "SVC_3001"
	ErrCodeDatabaseError ErrorCode = "SVC_3002"
	ErrCodeQueueError    ErrorCode = "SVC_3003"
	ErrCodeBlobError     ErrorCode = "SVC_3004"
	ErrCodeExternalAPI   ErrorCode = "SVC_3005"
	ErrCodeTimeout       ErrorCode = "SVC_3006"

	// Cryptographic errors (4xxx)
	ErrCodeEncryptionFailed ErrorCode = "CRYPTO_4001"
	ErrCodeDecryptionFailed ErrorCode = "CRYPTO_4002"
	ErrCodeInvalidKey       ErrorCode = "CRYPTO_4003"

	// Vision-model / OCR errors (5xxx) — always retryable by the worker.
	ErrCodeVisionHTTP            ErrorCode = "VISION_5001"
	ErrCodeVisionAPI             ErrorCode = "VISION_5002"
	ErrCodeVisionImageProcessing ErrorCode = "VISION_5003"
	ErrCodeVisionParse           ErrorCode = "VISION_5004"
)

// ServiceError is a structured error with a stable code, message, and HTTP status.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional structured context to the error, returning e for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Validation errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func InvalidFormat(field, expected string) *ServiceError {
	return New(ErrCodeInvalidFormat, "invalid format", http.StatusUnsupportedMediaType).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func TooLarge(limitBytes int64) *ServiceError {
	return New(ErrCodeTooLarge, "payload exceeds size limit", http.StatusRequestEntityTooLarge).
		WithDetails("limit_bytes", limitBytes)
}

// Resource errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Transient infrastructure errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func QueueError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeQueueError, "queue operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func BlobError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeBlobError, "blob store operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func ExternalAPIError(service string, err error) *ServiceError {
	return Wrap(ErrCodeExternalAPI, "external API call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

// Cryptographic errors

func EncryptionFailed(err error) *ServiceError {
	return Wrap(ErrCodeEncryptionFailed, "encryption failed", http.StatusInternalServerError, err)
}

func DecryptionFailed(err error) *ServiceError {
	return Wrap(ErrCodeDecryptionFailed, "decryption failed", http.StatusInternalServerError, err)
}

func InvalidKey(err error) *ServiceError {
	return Wrap(ErrCodeInvalidKey, "invalid encryption key", http.StatusInternalServerError, err)
}

// Vision-model / OCR errors

func VisionHTTPError(err error) *ServiceError {
	return Wrap(ErrCodeVisionHTTP, "vision model request failed", http.StatusBadGateway, err)
}

func VisionAPIError(message string) *ServiceError {
	return New(ErrCodeVisionAPI, message, http.StatusBadGateway)
}

func VisionImageProcessingError(err error) *ServiceError {
	return Wrap(ErrCodeVisionImageProcessing, "image processing failed", http.StatusUnprocessableEntity, err)
}

func VisionParseError(err error) *ServiceError {
	return Wrap(ErrCodeVisionParse, "failed to parse vision model response", http.StatusBadGateway, err)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error, defaulting to 500.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether the worker should retry a job that failed with err.
// Vision/parse and transient infrastructure errors are retryable; decryption
// failures are treated as retryable too, matching current (possibly wasteful)
// policy — see DESIGN.md open-question notes.
func IsRetryable(err error) bool {
	se := GetServiceError(err)
	if se == nil {
		return true
	}
	switch se.Code {
	case ErrCodeInvalidInput, ErrCodeMissingParameter, ErrCodeInvalidFormat, ErrCodeTooLarge, ErrCodeNotFound, ErrCodeAlreadyExists:
		return false
	default:
		return true
	}
}
