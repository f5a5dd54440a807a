package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/progress"
	"github.com/p-n-ai/academy/internal/report"
)

func newExportCmd(app *App) *cobra.Command {
	var backend, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every user's progress to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := content.NewCatalog(app.Config.ContentPath)
			if err != nil {
				return err
			}
			b, err := app.open(cmd.Context(), backend)
			if err != nil {
				return err
			}
			defer b.Close()

			users, err := b.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			learners := make([]report.Learner, len(users))
			for i, u := range users {
				c := u.Progress
				if c == nil {
					c = progress.Completion{}
				}
				learners[i] = report.Learner{Username: u.Username, Completion: c}
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := report.Write(f, catalog.Courses(), catalog.Exercises(content.ExerciseFilter{}), learners); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d users to %s\n", len(users), out)
			return nil
		},
	}

	backendFlag(cmd, &backend)
	cmd.Flags().StringVarP(&out, "out", "o", "progress.xlsx", "Output file")

	return cmd
}

func newValidateContentCmd(app *App) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate-content",
		Short: "Check course, exercise and about files for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = app.Config.ContentPath
			}
			problems, err := content.Lint(path)
			if err != nil {
				return err
			}
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d content problems in %s", len(problems), path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Content in %s is valid.\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Content directory (default LEARN_CONTENT_PATH)")

	return cmd
}
