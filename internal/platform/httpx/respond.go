// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// ProblemDetail represents RFC7807 problem details. Kind carries the workflow
// error taxonomy so callers can branch without parsing text; InvalidItems
// lists every offending line of a validation failure.
type ProblemDetail struct {
	Type         string               `json:"type,omitempty"`
	Title        string               `json:"title"`
	Status       int                  `json:"status"`
	Detail       string               `json:"detail,omitempty"`
	Kind         string               `json:"kind,omitempty"`
	InvalidItems []shared.InvalidItem `json:"invalid_items,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
