// Package httpx provides JSON response and request helpers for the API layer.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// MessageResponse is the envelope used by mutation endpoints and error bodies.
type MessageResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Message sends a plain {"message": ...} body.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Message: message})
}

// ValidationFailed sends a 422 with per-field error details.
func ValidationFailed(w http.ResponseWriter, fields map[string][]string) {
	JSON(w, http.StatusUnprocessableEntity, MessageResponse{
		Message: "The given data was invalid.",
		Errors:  fields,
	})
}

// DecodeJSON decodes the request body into target. An empty body is reported
// as ErrValidation so handlers can surface it as a 422.
func DecodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}
