package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

// Common errors for group repository operations.
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrVersionConflict = errors.New("group was modified concurrently")
)

// CreateGroup inserts a new group aggregate with its members and expenses.
// The stored version starts at 1.
func (r *Repository) CreateGroup(ctx context.Context, g *model.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO groups (id, name, created_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, g.ID, g.Name, g.CreatedBy, g.CreatedAt, g.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	if err := writeChildren(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}

	g.Version = 1
	return nil
}

// SaveGroup replaces the stored aggregate if its version still matches g.Version.
// On success g.Version is advanced. A stale version yields ErrVersionConflict.
func (r *Repository) SaveGroup(ctx context.Context, g *model.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	query := `
		UPDATE groups
		SET name = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
	`
	result, err := tx.Exec(ctx, query, g.ID, g.Version, g.Name, now)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, g.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}
		if !exists {
			return ErrGroupNotFound
		}
		return ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM expenses WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}

	if err := writeChildren(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}

	g.Version++
	g.UpdatedAt = now
	return nil
}

// GetGroup loads a full group aggregate.
func (r *Repository) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	groups, err := r.loadGroups(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrGroupNotFound
	}
	return groups[0], nil
}

// ListGroupsByMember returns the groups in which userID holds a membership
// with the given status, newest first.
func (r *Repository) ListGroupsByMember(ctx context.Context, userID string, status model.MemberStatus) ([]*model.Group, error) {
	query := `
		SELECT g.id
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY g.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan group ids: %w", err)
	}

	return r.loadGroups(ctx, ids)
}

// DeleteGroup removes the group's notifications and then the group itself.
// Members, expenses and splits cascade.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM notifications WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group notifications: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}
	return nil
}

// writeChildren inserts members, expenses and splits preserving slice order.
func writeChildren(ctx context.Context, tx pgx.Tx, g *model.Group) error {
	batch := &pgx.Batch{}

	for i, m := range g.Members {
		batch.Queue(`
			INSERT INTO group_members (group_id, user_id, position, status, role)
			VALUES ($1, $2, $3, $4, $5)`,
			g.ID, m.UserID, i, string(m.Status), string(m.Role),
		)
	}

	for i, e := range g.Expenses {
		batch.Queue(`
			INSERT INTO expenses (id, group_id, position, description, amount, paid_by, expense_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, g.ID, i, e.Description, e.Amount, e.PaidBy, e.Date, e.CreatedAt,
		)
		for j, s := range e.Splits {
			batch.Queue(`
				INSERT INTO expense_splits (expense_id, position, user_id, share)
				VALUES ($1, $2, $3, $4)`,
				e.ID, j, s.UserID, s.Share,
			)
		}
	}

	if batch.Len() == 0 {
		return nil
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write group children: %w", err)
	}
	return nil
}

// loadGroups fetches aggregates for ids, preserving the order of ids.
func (r *Repository) loadGroups(ctx context.Context, ids []string) ([]*model.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[string]*model.Group, len(ids))

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_by, version, created_at, updated_at
		FROM groups
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	for rows.Next() {
		g := &model.Group{Members: []model.Membership{}, Expenses: []model.Expense{}}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		byID[g.ID] = g
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	if err := r.loadMembers(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadExpenses(ctx, ids, byID); err != nil {
		return nil, err
	}

	groups := make([]*model.Group, 0, len(byID))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

func (r *Repository) loadMembers(ctx context.Context, ids []string, byID map[string]*model.Group) error {
	rows, err := r.pool.Query(ctx, `
		SELECT group_id, user_id, status, role
		FROM group_members
		WHERE group_id = ANY($1)
		ORDER BY group_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		var m model.Membership
		if err := rows.Scan(&groupID, &m.UserID, &m.Status, &m.Role); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		if g, ok := byID[groupID]; ok {
			g.Members = append(g.Members, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating members: %w", err)
	}
	return nil
}

func (r *Repository) loadExpenses(ctx context.Context, ids []string, byID map[string]*model.Group) error {
	rows, err := r.pool.Query(ctx, `
		SELECT e.group_id, e.id, e.description, e.amount, e.paid_by, e.expense_date, e.created_at,
		       s.user_id, s.share
		FROM expenses e
		LEFT JOIN expense_splits s ON s.expense_id = e.id
		WHERE e.group_id = ANY($1)
		ORDER BY e.group_id, e.position, s.position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			groupID    string
			e          model.Expense
			splitUser  *string
			splitShare decimal.NullDecimal
		)
		if err := rows.Scan(&groupID, &e.ID, &e.Description, &e.Amount, &e.PaidBy, &e.Date, &e.CreatedAt,
			&splitUser, &splitShare); err != nil {
			return fmt.Errorf("failed to scan expense: %w", err)
		}

		g, ok := byID[groupID]
		if !ok {
			continue
		}
		n := len(g.Expenses)
		if n == 0 || g.Expenses[n-1].ID != e.ID {
			e.Splits = []model.Split{}
			g.Expenses = append(g.Expenses, e)
			n++
		}
		if splitUser != nil && splitShare.Valid {
			last := &g.Expenses[n-1]
			last.Splits = append(last.Splits, model.Split{UserID: *splitUser, Share: splitShare.Decimal})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating expenses: %w", err)
	}
	return nil
}
