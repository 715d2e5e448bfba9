// Package httpx provides JSON response utilities for the security engine.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the deny payload every refused request receives. Message is
// human readable and never explains more than the named permission or
// condition.
type ErrorBody struct {
	Error      string   `json:"error"`
	Message    string   `json:"message,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Unauthorized sends the 401 deny payload.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, ErrorBody{Error: "Non authentifié"})
}

// Forbidden sends the 403 deny payload.
func Forbidden(w http.ResponseWriter, message string, reasons ...string) {
	JSON(w, http.StatusForbidden, ErrorBody{Error: "Accès refusé", Message: message, Reasons: reasons})
}

// TooManyRequests sends the 429 deny payload with a Retry-After header.
func TooManyRequests(w http.ResponseWriter, message string, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	JSON(w, http.StatusTooManyRequests, ErrorBody{Error: "Trop de requêtes", Message: message, RetryAfter: retryAfter})
}

// Internal sends a 500 with no internal detail.
func Internal(w http.ResponseWriter) {
	JSON(w, http.StatusInternalServerError, ErrorBody{Error: "Erreur interne"})
}

// Locked sends a 423 for locked accounts.
func Locked(w http.ResponseWriter, message string) {
	JSON(w, http.StatusLocked, ErrorBody{Error: "Compte verrouillé", Message: message})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
