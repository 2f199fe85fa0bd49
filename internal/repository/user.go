package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/splitledger/splitledger/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, email, name, created_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUsersByEmails resolves a batch of emails. Unknown emails are absent
// from the result; order follows the input.
func (r *Repository) GetUsersByEmails(ctx context.Context, emails []string) ([]*model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = ANY($1)`
	users, err := r.queryUsers(ctx, query, pq.Array(emails))
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string]*model.User, len(users))
	for _, u := range users {
		byEmail[u.Email] = u
	}

	ordered := make([]*model.User, 0, len(users))
	for _, e := range emails {
		if u, ok := byEmail[e]; ok {
			ordered = append(ordered, u)
			delete(byEmail, e)
		}
	}
	return ordered, nil
}

// GetUsersByIDs returns the users with the given ids keyed by id.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	result := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	users, err := r.queryUsers(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// GetOrCreateUser gets a user by email or creates one if not found.
func (r *Repository) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	existing, err := r.GetUserByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user.CreatedAt = time.Now()
	if err := r.CreateUser(ctx, user); err != nil {
		// Another request may have created it
		if errors.Is(err, ErrEmailExists) {
			return r.GetUserByEmail(ctx, user.Email)
		}
		return nil, err
	}

	return user, nil
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
