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

// ErrAPIKeyNotFound is returned when no key, or no unrevoked key, matches.
var ErrAPIKeyNotFound = errors.New("API key not found")

const apiKeyColumns = `id, user_id, key_hash, key_prefix, scopes, rate_limit_tier, name, revoked_at, last_used_at, created_at`

// CreateAPIKey stores a key that acts for key.UserID. Only the argon2 hash of
// the secret is written.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, rate_limit_tier, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix,
		pq.Array(key.Scopes), key.RateLimitTier, key.Name, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create api key %s: %w", key.ID, err)
	}
	return nil
}

// GetAPIKeyByID returns a key whether or not it is revoked.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	key, err := pgx.CollectOneRow(rows, scanAPIKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	return key, nil
}

// GetAPIKeysByPrefix returns the unrevoked keys sharing a prefix. The auth
// middleware verifies the secret against each one.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	return r.queryAPIKeys(ctx, "by prefix",
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
}

// ListAPIKeysByUserID returns all of a user's keys, newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	return r.queryAPIKeys(ctx, "by user",
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

// RevokeAPIKey marks a key revoked. Revoking twice reports ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps last_used_at. Auth calls it off the request
// path.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch api key %s: %w", id, err)
	}
	return nil
}

func (r *Repository) queryAPIKeys(ctx context.Context, what, query string, arg string) ([]*model.APIKey, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list api keys %s: %w", what, err)
	}
	keys, err := pgx.CollectRows(rows, scanAPIKey)
	if err != nil {
		return nil, fmt.Errorf("list api keys %s: %w", what, err)
	}
	return keys, nil
}

func scanAPIKey(row pgx.CollectableRow) (*model.APIKey, error) {
	var key model.APIKey
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix,
		pq.Array(&key.Scopes), &key.RateLimitTier, &key.Name,
		&key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
	)
	return &key, err
}
