// Package httputil provides common HTTP response and request helpers shared
// by the intake service's handlers.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response, unwrapping a *ServiceError when
// possible so the caller gets a stable code and the right HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	if se := apperrors.GetServiceError(err); se != nil {
		WriteJSON(w, se.HTTPStatus, ErrorResponse{
			Error:   se.Message,
			Code:    string(se.Code),
			Details: se.Details,
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: message})
}

// DecodeJSON decodes a JSON request body into v, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// QueryInt extracts an integer query parameter with a default value.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

// QueryString extracts a string query parameter with a default value.
func QueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}
