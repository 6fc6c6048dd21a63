package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/domain/process"
)

func newKillCommand() *cobra.Command {
	var hard bool
	cmd := &cobra.Command{
		Use:   "kill <database>",
		Short: "Stop the server running on a database",
		Args:  requireArgs(1, "ovm kill <database> [--hard]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			db := a.database(args[0])
			defer db.Close()

			ctrl := a.controller(db, process.Options{})
			handle, running := ctrl.Handle(cmd.Context())
			if !running {
				a.renderer.Result(fmt.Sprintf("%s is not running", args[0]))
				return nil
			}
			if err := ctrl.Kill(cmd.Context(), hard); err != nil {
				return err
			}
			a.renderer.Result(fmt.Sprintf("stopped %s (pid %d)", args[0], handle.PID))
			return nil
		},
	}
	cmd.Flags().BoolVar(&hard, "hard", false, "kill instead of interrupting")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <database>",
		Short: "Show whether a server runs on a database",
		Args:  requireArgs(1, "ovm status <database>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()
			name := args[0]
			db := a.database(name)
			defer db.Close()

			a.renderer.Header(name)
			fields := [][2]string{}
			if v, ok, err := db.Version(ctx); err != nil {
				a.logger.Debug("could not read database version", "database", name, "err", err)
				fields = append(fields, [2]string{"version", "unknown"})
			} else if ok {
				fields = append(fields, [2]string{"version", v.String()})
				if edition, err := db.Edition(ctx); err == nil {
					fields = append(fields, [2]string{"edition", string(edition)})
				}
			}
			if pin, ok, err := a.store.Get(ctx, name); err == nil && ok {
				fields = append(fields, pinFields(pin.Sandbox, pin.Worktree, pin.Addons)...)
			}

			ctrl := a.controller(db, process.Options{})
			handle, running := ctrl.Handle(ctx)
			if running {
				fields = append(fields,
					[2]string{"status", "running"},
					[2]string{"pid", strconv.Itoa(handle.PID)},
					[2]string{"port", strconv.Itoa(handle.Port)},
					[2]string{"url", handle.URL()},
				)
			} else {
				fields = append(fields, [2]string{"status", "stopped"})
			}
			renderFields(a, fields)
			return nil
		},
	}
}

func pinFields(sandbox, worktree string, addons []string) [][2]string {
	var out [][2]string
	if sandbox != "" {
		out = append(out, [2]string{"venv", sandbox})
	}
	if worktree != "" {
		out = append(out, [2]string{"worktree", worktree})
	}
	if len(addons) > 0 {
		out = append(out, [2]string{"addons", strings.Join(addons, ",")})
	}
	return out
}

func renderFields(a *app, fields [][2]string) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}
	for _, f := range fields {
		a.renderer.Field(f[0], f[1], width)
	}
}
