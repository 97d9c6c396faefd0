// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wardenhq/warden/pkg/apperr"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteError maps an error to its HTTP status using the apperr taxonomy and
// writes it as a JSON error response. Denials deliberately carry no detail
// about which rule matched.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		WriteErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		WriteErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrUnauthenticated):
		WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, apperr.ErrForbidden):
		WriteErrorMessage(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, apperr.ErrProtectedResource):
		WriteErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		WriteErrorMessage(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
}
