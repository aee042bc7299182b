package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error             string `json:"error"`   // Machine-readable error code
	Message           string `json:"message"` // Human-readable message
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteSessionLocked tells the caller the admin surface is locked and a login is needed
func WriteSessionLocked(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "session_locked", "Admin session is locked. Sign in to continue.")
}

// WriteInvalidCredentials reports a wrong credential together with the attempts left
func WriteInvalidCredentials(w http.ResponseWriter, attemptsRemaining int) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:             "invalid_credentials",
		Message:           "Incorrect username or password.",
		AttemptsRemaining: &attemptsRemaining,
	})
}

// WriteRateLimited reports that attempts are arriving too quickly
func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             "rate_limited",
		Message:           "Too many attempts. Wait before trying again.",
		RetryAfterSeconds: &retryAfterSeconds,
	})
}

// WriteLockedOut reports an active lockout and how long it lasts
func WriteLockedOut(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteJSON(w, http.StatusLocked, ErrorResponse{
		Error:             "locked_out",
		Message:           "Admin sign-in is locked after repeated failures.",
		RetryAfterSeconds: &retryAfterSeconds,
	})
}
