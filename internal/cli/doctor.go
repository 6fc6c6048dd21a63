package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/app/doctor"
	"github.com/tasuku43/ovm/internal/domain/database"
	"github.com/tasuku43/ovm/internal/ui"
)

func newDoctorCommand() *cobra.Command {
	var fix bool
	var self bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the tools and the state root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if self {
				return runSelfCheck(cmd)
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			repos, err := a.knownRepositories()
			if err != nil {
				return err
			}
			conn := a.cfg.Postgres.Conn()
			env := doctor.Env{
				Layout:       a.cfg.Layout(),
				Repos:        a.repos,
				Worktrees:    a.worktrees,
				Repositories: repos,
				Ping: func(ctx context.Context) error {
					db, err := database.PgxConnector(conn)(ctx, "postgres")
					if err != nil {
						return err
					}
					return db.Close()
				},
			}

			var result doctor.Result
			var fixed []string
			if fix {
				res, err := doctor.Fix(cmd.Context(), env)
				if err != nil {
					return err
				}
				result, fixed = res.Result, res.Fixed
			} else {
				result, err = doctor.Check(cmd.Context(), env)
				if err != nil {
					return err
				}
			}

			a.renderer.Section("Result")
			for _, line := range fixed {
				a.renderer.Success("fixed " + line)
			}
			for _, w := range result.Warnings {
				a.renderer.Warn(w.Error())
			}
			for _, issue := range result.Issues {
				text := fmt.Sprintf("%s: %s (%s)", issue.Kind, issue.Message, issue.Path)
				if issue.Fixable {
					text += " [fixable with --fix]"
				}
				a.renderer.BulletError(text)
			}
			if len(result.Issues) == 0 && len(result.Warnings) == 0 {
				a.renderer.Result("no issues found")
			}
			if len(result.Issues) > 0 {
				return fmt.Errorf("%d issues found", len(result.Issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair fixable issues")
	cmd.Flags().BoolVar(&self, "self", false, "check the external tools only")
	return cmd
}

func runSelfCheck(cmd *cobra.Command) error {
	result, err := doctor.SelfCheck(cmd.Context(), nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	r := ui.NewRenderer(out, ui.DefaultTheme(), isTerminal(out))
	r.Section("Details")
	for _, line := range result.Details {
		r.Result(line)
	}
	for _, w := range result.Warnings {
		r.Warn(w)
	}
	for _, issue := range result.Issues {
		r.BulletError(fmt.Sprintf("%s: %s", issue.Kind, issue.Message))
	}
	if len(result.Issues) > 0 {
		return fmt.Errorf("%d issues found", len(result.Issues))
	}
	return nil
}
