package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrEmptyInput rejects an explain request whose code is blank.
var ErrEmptyInput = errors.New("Code snippet cannot be empty")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Detail: err.Error()})
}
