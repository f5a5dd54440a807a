// Package cli implements academyctl, the operator command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/academy/internal/platform/config"
	"github.com/p-n-ai/academy/internal/storage"
)

// App holds what the commands share.
type App struct {
	Config *config.Config
	// BcryptCost overrides Config.Auth.BcryptCost when set. Tests lower it.
	BcryptCost int
}

// NewRootCmd creates the top-level "academyctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "academyctl",
		Short:         "Administer the academy: storage, users, exports and content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newInitDBCmd(app),
		newCreateUserCmd(app),
		newMigrateCmd(app),
		newExportCmd(app),
		newValidateContentCmd(app),
	)

	return root
}

func (app *App) open(ctx context.Context, backend string) (*storage.Backend, error) {
	if backend == "" {
		backend = app.Config.Storage.Backend
	}
	b, err := storage.OpenAccounts(ctx, app.Config, backend)
	if err != nil {
		return nil, fmt.Errorf("opening %s back end: %w", backend, err)
	}
	return b, nil
}

func (app *App) bcryptCost() int {
	if app.BcryptCost != 0 {
		return app.BcryptCost
	}
	return app.Config.Auth.BcryptCost
}

func backendFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "backend", "", "Storage back end (default LEARN_STORAGE_BACKEND)")
}
