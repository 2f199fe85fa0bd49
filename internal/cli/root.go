// Package cli implements the splitadmin operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
	"github.com/splitledger/splitledger/migrations"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Store is the persistence surface the operator commands need.
type Store interface {
	Migrate(ctx context.Context) ([]string, error)
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	Close()
}

// OpenFunc connects to the store behind databaseURL.
type OpenFunc func(ctx context.Context, databaseURL string) (Store, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Format      string // "json" | "text"
	Timeout     time.Duration

	open OpenFunc
}

// NewRootCommand creates the root command backed by PostgreSQL.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openRepository)
}

func newRootCommand(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "splitadmin",
		Short: "SplitLedger operator tooling",
		Long:  "Apply schema migrations and bootstrap users and API keys for SplitLedger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DatabaseURL == "" {
				return fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall command timeout")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))

	return cmd
}

// withStore opens the store, runs fn and closes the store again.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, store Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()

	store, err := o.open(ctx, o.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

// print writes v as indented JSON or falls back to the text renderer.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

type repositoryStore struct {
	*repository.Repository
}

func (s repositoryStore) Migrate(ctx context.Context) ([]string, error) {
	return migrations.Up(ctx, s.Pool())
}

func openRepository(ctx context.Context, databaseURL string) (Store, error) {
	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return repositoryStore{repo}, nil
}
