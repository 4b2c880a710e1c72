package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrHijackUnsupported is returned when the response writer under the
// middleware cannot be hijacked for a WebSocket upgrade.
var ErrHijackUnsupported = errors.New("api: response writer does not support hijacking")

const codeInternal = "internal_error"

// Error is the JSON body of a failed ops request.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // The client may already be gone
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}
