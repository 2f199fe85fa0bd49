//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splitledger/splitledger/internal/testutil"
	"github.com/splitledger/splitledger/migrations"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tables := []string{
		"users",
		"api_keys",
		"groups",
		"group_members",
		"expenses",
		"expense_splits",
		"notifications",
		"group_activities",
		"schema_migrations",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_ExpensesTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"group_id",
		"position",
		"description",
		"amount",
		"paid_by",
		"expense_date",
		"created_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "expenses", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in expenses table", col)
			}
		})
	}
}

func TestIntegrationMigration_MemberStatusConstraint(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)
	repo := NewFromPool(pool)

	owner := seedUser(t, ctx, repo, "owner")
	group := testutil.NewTestGroup(t, owner.ID)
	if err := repo.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	_, err := pool.Exec(ctx,
		`UPDATE group_members SET status = 'maybe' WHERE group_id = $1`, group.ID)
	if err == nil {
		t.Error("expected check constraint violation for unknown status")
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	applied, err := migrations.Up(ctx, pool)
	if err != nil {
		t.Fatalf("second Up should not fail: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no migrations on second run, got %v", applied)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
