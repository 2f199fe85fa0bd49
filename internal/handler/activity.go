package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/service"
)

// ActivityHandler serves group activity feeds.
type ActivityHandler struct {
	svc    *service.ActivityService
	logger *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(svc *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/groups/{groupID}/activity.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive number")
			return
		}
		limit = n
	}

	activities, err := h.svc.ListActivity(r.Context(), actor, chi.URLParam(r, "groupID"), limit)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToActivityResponses(activities))
}
