package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

// InsertActivities stores a batch of activity entries. Entries whose event id
// is already stored, or whose group no longer exists, are skipped.
func (r *Repository) InsertActivities(ctx context.Context, activities []*model.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range activities {
		var amount decimal.NullDecimal
		if a.Amount != nil {
			amount = decimal.NewNullDecimal(*a.Amount)
		}
		batch.Queue(`
			INSERT INTO group_activities (id, event_id, group_id, actor_id, kind, subject_id, amount, detail, occurred_at)
			SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::numeric, $8::text, $9::timestamptz
			WHERE EXISTS (SELECT 1 FROM groups WHERE id = $3::text)
			ON CONFLICT (event_id) DO NOTHING`,
			a.ID, a.EventID, a.GroupID, a.ActorID, string(a.Kind),
			nullString(a.SubjectID), amount, nullString(a.Detail), a.OccurredAt,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert activities: %w", err)
	}
	return nil
}

// ListActivities returns up to limit entries of a group's feed, newest first.
func (r *Repository) ListActivities(ctx context.Context, groupID string, limit int) ([]*model.Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, group_id, actor_id, kind, subject_id, amount, detail, occurred_at
		FROM group_activities
		WHERE group_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*model.Activity{}
	for rows.Next() {
		var (
			a       model.Activity
			subject *string
			amount  decimal.NullDecimal
			detail  *string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.GroupID, &a.ActorID, &a.Kind,
			&subject, &amount, &detail, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if subject != nil {
			a.SubjectID = *subject
		}
		if amount.Valid {
			a.Amount = &amount.Decimal
		}
		if detail != nil {
			a.Detail = *detail
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return activities, nil
}
