// Package notifier tracks which users hold a live connection and delivers
// invitation events to them on a best-effort, at-most-once basis.
//
// Delivery never feeds back into persisted notification status: a user who is
// offline simply finds the notification when listing their inbox.
package notifier

import (
	"context"
	"encoding/json"

	"github.com/splitledger/splitledger/internal/model"
)

// Notifier delivers a notification to a user if they are connected.
// Implementations must not block on the recipient.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *model.Notification)
}

// Frame types exchanged over the realtime connection.
const (
	FrameRegister     = "register"
	FrameRegistered   = "registered"
	FrameNotification = "notification"
	FramePing         = "ping"
	FramePong         = "pong"
	FrameError        = "error"
)

// Frame is the envelope for every message on the realtime connection.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type registerPayload struct {
	Ticket string `json:"ticket"`
}

type registeredPayload struct {
	UserID string `json:"user_id"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newFrame(frameType string, payload any) Frame {
	f := Frame{Type: frameType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			f.Payload = b
		}
	}
	return f
}
