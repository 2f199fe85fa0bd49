// Package testutil holds shared helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema runs every down migration in reverse order and then every up
// migration, leaving an empty schema.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := migrations.List(".down.sql")
	if err != nil {
		return err
	}
	for i := len(downs) - 1; i >= 0; i-- {
		sql, err := migrations.Read(downs[i])
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply %s: %w", downs[i], err)
		}
	}

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	if _, err := migrations.Up(ctx, pool); err != nil {
		return fmt.Errorf("apply up migrations: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a unique, already normalized email.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:        id,
		Email:     model.NormalizeEmail(fmt.Sprintf("%s-%s@example.test", name, id)),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestGroup creates a group owned by creator with the given pending invitees.
func NewTestGroup(t testing.TB, creator string, invitees ...string) *model.Group {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	g := &model.Group{
		ID:        ulid.Make().String(),
		Name:      "Test Group",
		CreatedBy: creator,
		Members: []model.Membership{
			{UserID: creator, Status: model.MemberAccepted, Role: model.RoleAdmin},
		},
		Expenses:  []model.Expense{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, id := range invitees {
		g.Members = append(g.Members, model.Membership{UserID: id, Status: model.MemberPending, Role: model.RoleMember})
	}
	return g
}

// NewTestExpense creates an expense paid by paidBy split equally among users.
func NewTestExpense(t testing.TB, amount int64, paidBy string, users ...string) model.Expense {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := model.Expense{
		ID:          ulid.Make().String(),
		Description: "Test expense",
		Amount:      decimal.NewFromInt(amount),
		PaidBy:      paidBy,
		Date:        now,
		CreatedAt:   now,
		Splits:      []model.Split{},
	}
	for _, u := range users {
		e.Splits = append(e.Splits, model.Split{UserID: u})
	}
	e.RedistributeEqually()
	return e
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:     "sl_test_",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
