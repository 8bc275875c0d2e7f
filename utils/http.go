package utils

import (
	"encoding/json"
	"net/http"
)

// Error codes used in gateway responses. The body shape follows RFC 6749
// error responses: {"error": code, "error_description": text}.
const (
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidToken         = "invalid_token"
	ErrExpiredToken         = "expired_token"
	ErrTenantNotAllowed     = "tenant_not_allowed"
	ErrRateLimitExceeded    = "rate_limit_exceeded"
	ErrUnsupportedGrantType = "unsupported_grant_type"
	ErrServerError          = "server_error"
)

// ErrorResponse is the OAuth-shaped error body returned on every 4xx/5xx.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an OAuth-shaped error body with the given status code.
func WriteError(w http.ResponseWriter, status int, code, description string) error {
	return WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// WriteUnauthorized writes a 401 with the given error code.
func WriteUnauthorized(w http.ResponseWriter, code, description string) error {
	return WriteError(w, http.StatusUnauthorized, code, description)
}

// WriteForbidden writes a 403 with the given error code.
func WriteForbidden(w http.ResponseWriter, code, description string) error {
	return WriteError(w, http.StatusForbidden, code, description)
}

// WriteBadRequest writes a 400 invalid_request error.
func WriteBadRequest(w http.ResponseWriter, description string) error {
	return WriteError(w, http.StatusBadRequest, ErrInvalidRequest, description)
}

// WriteServerError writes a 500 server_error. Internal error text must never
// reach the caller; log the diagnostic and pass a generic description here.
func WriteServerError(w http.ResponseWriter) error {
	return WriteError(w, http.StatusInternalServerError, ErrServerError, "internal server error")
}
