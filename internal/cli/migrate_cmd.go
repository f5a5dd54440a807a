package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/platform/config"
)

// migrateResult counts what copyUsers did.
type migrateResult struct {
	Copied  int
	Skipped int
	Renamed int
}

// copyUsers copies every user of src into dst with their progress. Users
// whose username already exists in dst are skipped. With uuidIDs set, ids
// that are not UUIDs are replaced by fresh ones.
func copyUsers(ctx context.Context, src, dst account.Store, uuidIDs bool) (migrateResult, error) {
	var res migrateResult
	users, err := src.List(ctx)
	if err != nil {
		return res, fmt.Errorf("listing source users: %w", err)
	}
	for _, u := range users {
		u = u.Clone()
		if uuidIDs {
			if _, err := uuid.Parse(u.ID); err != nil {
				slog.Info("assigning new id", "username", u.Username, "old_id", u.ID)
				u.ID = uuid.NewString()
				res.Renamed++
			}
		}
		if err := dst.Create(ctx, u); err != nil {
			if errors.Is(err, account.ErrUsernameTaken) {
				slog.Warn("skipping existing user", "username", u.Username)
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("copying %q: %w", u.Username, err)
		}
		res.Copied++
	}
	return res, nil
}

func newMigrateCmd(app *App) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy user accounts and their progress between storage back ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == to {
				return fmt.Errorf("--from and --to must differ")
			}
			src, err := app.open(cmd.Context(), from)
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := app.open(cmd.Context(), to)
			if err != nil {
				return err
			}
			defer dst.Close()

			uuidIDs := to == config.BackendPostgres || to == config.BackendSupabase
			res, err := copyUsers(cmd.Context(), src.Users, dst.Users, uuidIDs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d users from %s to %s (%d skipped, %d new ids).\n",
				res.Copied, from, to, res.Skipped, res.Renamed)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source back end")
	cmd.Flags().StringVar(&to, "to", "", "Target back end")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
