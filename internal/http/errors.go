// Package httpapi exposes the seat reservation API over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes {"error": code, "details": ...} with the given status.
func WriteJSONError(w http.ResponseWriter, status int, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: code, Details: details})
}
