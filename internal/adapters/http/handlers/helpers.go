// Package handlers implements the operational HTTP endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}
