package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/service"
)

// TicketIssuer issues short-lived realtime connection tickets.
type TicketIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// NotificationHandler serves notifications and realtime tickets.
type NotificationHandler struct {
	svc     *service.NotificationService
	tickets TicketIssuer
	logger  *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *service.NotificationService, tickets TicketIssuer, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:     svc,
		tickets: tickets,
		logger:  logger,
	}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	notifications, err := h.svc.ListMyNotifications(r.Context(), actor)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToNotificationResponses(notifications))
}

// Ticket handles POST /api/v1/realtime/ticket.
func (h *NotificationHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	ticket, expiresAt, err := h.tickets.Issue(actor)
	if err != nil {
		h.logger.Error("failed to issue realtime ticket", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to issue ticket")
		return
	}

	writeData(w, http.StatusCreated, dto.TicketResponse{Ticket: ticket, ExpiresAt: expiresAt})
}
