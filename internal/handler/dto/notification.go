package dto

import (
	"time"

	"github.com/splitledger/splitledger/internal/model"
)

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	GroupID   string    `json:"group_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ToNotificationResponses converts notifications.
func ToNotificationResponses(list []*model.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Message:   n.Message,
			Type:      string(n.Type),
			Status:    string(n.Status),
			GroupID:   n.GroupID,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// TicketResponse carries a realtime connection ticket.
type TicketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateUserRequest represents the admin request for provisioning a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
