// Package middleware holds the HTTP middleware chain of the ledger API.
package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the handler package's error envelope so that clients see
// one error shape whether a request stopped in middleware or in a handler.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
