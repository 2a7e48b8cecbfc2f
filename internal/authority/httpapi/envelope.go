// Package httpapi wires the authority's HTTP surface: chi router, the
// {code, message, data} envelope (spec §6), and handlers for the
// license/node endpoints. Grounded on the teacher's cmd/server/main.go
// routing style and internal/auth/handler.go's writeJSON/writeError helpers.
package httpapi

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Code: status, Message: message, Data: data}) //nolint:errcheck
}

func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, "ok", data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, message, nil)
}
