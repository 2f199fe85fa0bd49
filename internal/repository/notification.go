package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splitledger/splitledger/internal/model"
)

// ErrNotificationNotFound is returned when a notification does not exist
// or does not belong to the requesting user.
var ErrNotificationNotFound = errors.New("notification not found")

// CreateNotification inserts a notification.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, message, type, status, group_id, is_read, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Message,
		string(n.Type),
		string(n.Status),
		nullString(n.GroupID),
		n.IsRead,
		nullString(string(n.Response)),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ConsumeNotification deletes the invite notification addressed to userID
// for groupID and returns it. A second call yields ErrNotificationNotFound.
func (r *Repository) ConsumeNotification(ctx context.Context, id, userID, groupID string) (*model.Notification, error) {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND user_id = $2 AND group_id = $3
		RETURNING id, user_id, message, type, status, group_id, is_read, response, created_at
	`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id, userID, groupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to consume notification: %w", err)
	}
	return n, nil
}

// ListNotificationsByUser returns userID's notifications with the given status, newest first.
func (r *Repository) ListNotificationsByUser(ctx context.Context, userID string, status model.NotificationStatus) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, message, type, status, group_id, is_read, response, created_at
		FROM notifications
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n        model.Notification
		groupID  *string
		response *string
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Message,
		&n.Type,
		&n.Status,
		&groupID,
		&n.IsRead,
		&response,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	if groupID != nil {
		n.GroupID = *groupID
	}
	if response != nil {
		n.Response = model.MemberStatus(*response)
	}
	return &n, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
