package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/infra/output"
	"github.com/tasuku43/ovm/internal/infra/store"
)

func newPinsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pins",
		Short: "Show or forget the options remembered per database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			pins, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(pins) == 0 {
				a.renderer.Result("no databases remembered")
				return nil
			}
			renderPins(output.NewIndentWriter(a.out), pins)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "forget <database>...",
		Short: "Forget the remembered options of databases",
		Args:  requireArgs(1, "ovm pins forget <database>..."),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, name := range args {
				if err := a.store.Delete(cmd.Context(), name); err != nil {
					return err
				}
				a.renderer.Result(fmt.Sprintf("forgot %s", name))
			}
			return nil
		},
	})
	return cmd
}

func renderPins(w io.Writer, pins []store.Pin) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Database", "Version", "Venv", "Worktree", "Addons", "Updated"})
	for _, p := range pins {
		t.AppendRow(table.Row{p.Database, p.Version, p.Sandbox, p.Worktree, strings.Join(p.Addons, "\n"), p.UpdatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.Render()
}
