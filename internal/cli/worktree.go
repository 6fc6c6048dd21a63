package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/worktree"
	"github.com/tasuku43/ovm/internal/infra/output"
)

func newWorktreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Inspect and maintain the managed worktrees",
	}
	cmd.AddCommand(newWorktreeListCommand(), newWorktreePullCommand(), newWorktreePruneCommand())
	return cmd
}

func newWorktreeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List managed worktrees",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			repos, err := a.knownRepositories()
			if err != nil {
				return err
			}
			var rows []worktreeRow
			for _, r := range a.cloned(repos) {
				worktrees, err := a.worktrees.Managed(cmd.Context(), r)
				if err != nil {
					a.logger.Warn("could not list worktrees", "repository", r.FullName(), "err", err)
					continue
				}
				for _, wt := range worktrees {
					rows = append(rows, newWorktreeRow(a.worktrees.Root, r, wt))
				}
			}
			if len(rows) == 0 {
				a.renderer.Result("no worktrees")
				return nil
			}
			renderWorktrees(output.NewIndentWriter(a.out), rows)
			return nil
		},
	}
}

type worktreeRow struct {
	Name       string
	Repository string
	Branch     string
	State      string
	Path       string
}

func newWorktreeRow(root string, r repo.Repository, wt worktree.Worktree) worktreeRow {
	name := filepath.Base(filepath.Dir(wt.Path))
	if rel, err := filepath.Rel(root, filepath.Dir(wt.Path)); err == nil {
		name = rel
	}
	branch := wt.Branch
	if wt.Detached {
		branch = "(detached)"
	}
	state := ""
	switch {
	case wt.Prunable:
		state = "prunable"
	case wt.Locked:
		state = "locked"
	}
	return worktreeRow{
		Name:       name,
		Repository: r.FullName(),
		Branch:     branch,
		State:      state,
		Path:       wt.Path,
	}
}

func renderWorktrees(w io.Writer, rows []worktreeRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Repository", "Branch", "State", "Path"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Name, row.Repository, row.Branch, row.State, row.Path})
	}
	t.Render()
}

func newWorktreePullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Force-update managed worktrees that are behind their upstream",
		Long: `Fetch every shared clone, then offer to pull the managed worktrees that are
behind. Uncommitted changes are stashed and restored; local commits that are
not upstream are lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			repos, err := a.knownRepositories()
			if err != nil {
				return err
			}
			pulled, err := a.worktrees.PullOutdated(cmd.Context(), a.cloned(repos))
			if err != nil {
				return err
			}
			a.renderer.Result(fmt.Sprintf("%d worktrees pulled", pulled))
			return nil
		},
	}
}

func newWorktreePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Forget worktrees whose directory is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			repos, err := a.knownRepositories()
			if err != nil {
				return err
			}
			for _, r := range a.cloned(repos) {
				a.renderer.Step(r.FullName())
				if err := a.worktrees.PruneStale(cmd.Context(), r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
