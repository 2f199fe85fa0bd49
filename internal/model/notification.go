package model

import "time"

// NotificationType is the channel a notification is meant for.
type NotificationType string

const (
	NotificationEmail NotificationType = "Email"
	NotificationSMS   NotificationType = "SMS"
	NotificationInApp NotificationType = "In-App"
)

// NotificationStatus is the recorded delivery status.
// Invites are always recorded as Sent; live delivery never updates it.
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "Sent"
	NotificationFailed  NotificationStatus = "Failed"
	NotificationPending NotificationStatus = "Pending"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Message   string             `json:"message"`
	Type      NotificationType   `json:"type"`
	Status    NotificationStatus `json:"status"`
	GroupID   string             `json:"group_id,omitempty"`
	IsRead    bool               `json:"is_read"`
	Response  MemberStatus       `json:"response,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// InviteMessage formats the invitation text for a group.
func InviteMessage(groupName string) string {
	return `You have been invited to join the group "` + groupName + `"`
}
