package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// MigrateResult lists the migrations applied by one run.
type MigrateResult struct {
	Applied []string `json:"applied"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, store Store) error {
				applied, err := store.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				result := MigrateResult{Applied: applied}
				if result.Applied == nil {
					result.Applied = []string{}
				}
				return rootOpts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
					if len(applied) == 0 {
						fmt.Fprintln(w, "schema is up to date")
						return
					}
					for _, name := range applied {
						fmt.Fprintln(w, "applied", name)
					}
				})
			})
		},
	}
}
