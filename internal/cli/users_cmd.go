package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/academy/internal/account"
)

func newInitDBCmd(app *App) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the schema of the storage back end",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening a back end applies its schema.
			b, err := app.open(cmd.Context(), backend)
			if err != nil {
				return err
			}
			defer b.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Storage %s is ready.\n", b.Name)
			return nil
		},
	}

	backendFlag(cmd, &backend)
	return cmd
}

func newCreateUserCmd(app *App) *cobra.Command {
	var backend, username, password string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.open(cmd.Context(), backend)
			if err != nil {
				return err
			}
			defer b.Close()

			svc := account.NewService(account.ServiceConfig{Store: b.Users, BcryptCost: app.bcryptCost()})
			u, err := svc.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", u.Username, u.ID)
			if app.Config.Auth.IsAdmin(u.Username) {
				fmt.Fprintln(cmd.OutOrStdout(), "The user is an admin.")
			}
			return nil
		},
	}

	backendFlag(cmd, &backend)
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
