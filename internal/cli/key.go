package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
)

// KeyResult is printed once after a key is created. Key is never shown again.
type KeyResult struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newKeyCreateCommand(rootOpts))
	return cmd
}

func newKeyCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		email  string
		name   string
		scopes string
		tier   string
		env    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseScopes(scopes)
			if err != nil {
				return err
			}
			if _, ok := model.TierConfigs[tier]; !ok {
				return fmt.Errorf("invalid tier: %s", tier)
			}

			return rootOpts.withStore(cmd, func(ctx context.Context, store Store) error {
				user, err := store.GetUserByEmail(ctx, model.NormalizeEmail(email))
				if err != nil {
					if errors.Is(err, repository.ErrUserNotFound) {
						return fmt.Errorf("no user with email %s; run `splitadmin user create` first", email)
					}
					return fmt.Errorf("lookup user: %w", err)
				}

				generated, err := auth.GenerateAPIKey(env)
				if err != nil {
					return fmt.Errorf("generate api key: %w", err)
				}

				key := &model.APIKey{
					ID:            ulid.Make().String(),
					UserID:        user.ID,
					KeyHash:       generated.Hash,
					KeyPrefix:     generated.Prefix,
					Scopes:        parsed,
					RateLimitTier: tier,
					Name:          name,
					CreatedAt:     time.Now().UTC(),
				}
				if err := store.CreateAPIKey(ctx, key); err != nil {
					return fmt.Errorf("create api key: %w", err)
				}

				out := KeyResult{
					UserID:    user.ID,
					Email:     user.Email,
					KeyID:     key.ID,
					Key:       generated.Plaintext,
					KeyPrefix: key.KeyPrefix,
					Scopes:    parsed,
				}
				return rootOpts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintln(w, out.Key)
				})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner email (required)")
	cmd.Flags().StringVar(&name, "name", "bootstrap", "API key name")
	cmd.Flags().StringVar(&scopes, "scopes", model.ScopeAdmin, "comma-separated scopes (read,write,admin)")
	cmd.Flags().StringVar(&tier, "tier", model.TierUnlimited, "rate limit tier (free|pro|unlimited)")
	cmd.Flags().StringVar(&env, "env", auth.EnvLive, "key environment (live|test)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func parseScopes(input string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(input, ",") {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !model.ValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}
