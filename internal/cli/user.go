package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserCreateCommand(rootOpts))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can be invited to groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = model.NormalizeEmail(email)
			name = strings.TrimSpace(name)
			if err := middleware.ValidateEmail(email); err != nil {
				return err
			}
			if err := middleware.ValidateName(name); err != nil {
				return err
			}

			return rootOpts.withStore(cmd, func(ctx context.Context, store Store) error {
				user := &model.User{
					ID:        ulid.Make().String(),
					Email:     email,
					Name:      name,
					CreatedAt: time.Now().UTC(),
				}
				if err := store.CreateUser(ctx, user); err != nil {
					if errors.Is(err, repository.ErrEmailExists) {
						return fmt.Errorf("user %s already exists", email)
					}
					return fmt.Errorf("create user: %w", err)
				}
				return rootOpts.print(cmd.OutOrStdout(), user, func(w io.Writer) {
					fmt.Fprintln(w, user.ID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
