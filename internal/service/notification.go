package service

import (
	"context"

	"github.com/splitledger/splitledger/internal/model"
)

// NotificationService lists a user's notifications.
type NotificationService struct {
	*core
}

// ListMyNotifications returns the actor's sent notifications, newest first.
func (s *NotificationService) ListMyNotifications(ctx context.Context, actorID string) ([]*model.Notification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	notifications, err := s.store.ListNotificationsByUser(ctx, actorID, model.NotificationSent)
	if err != nil {
		return nil, storeError("failed to list notifications", err)
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	return notifications, nil
}
