// Package handler maps the ledger API onto the services: request decoding,
// the JSON envelope and service error translation.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/service"
)

// Version is overridden at build time through -ldflags -X.
var Version = "dev"

// Handler serves the unversioned utility routes.
type Handler struct{}

func New() *Handler {
	return &Handler{}
}

// serviceIndex is the body of GET /.
type serviceIndex struct {
	Service string            `json:"service"`
	Version string            `json:"version"`
	Links   map[string]string `json:"links"`
}

// Index points clients at the API, the realtime socket and the probes.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, serviceIndex{
		Service: "splitledger",
		Version: Version,
		Links: map[string]string{
			"groups":   "/api/v1/groups",
			"realtime": "/ws",
			"health":   "/healthz",
			"ready":    "/readyz",
		},
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.OK(data))
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.Fail(code, message))
}

// decodeJSON decodes the request body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// actorID returns the authenticated user or writes a 401.
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	return id, ok
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(logger *slog.Logger, w http.ResponseWriter, err error) {
	message := "An internal error occurred"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	switch {
	case errors.Is(err, service.ErrInternal):
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "An internal error occurred")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", message)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", message)
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", message)
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", message)
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "An internal error occurred")
	}
}
