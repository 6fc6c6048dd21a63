package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/domain/process"
	"github.com/tasuku43/ovm/internal/infra/store"
)

type runFlags struct {
	version    string
	enterprise bool
	venv       string
	worktree   string
	addons     []string
	subcommand string
	logLevel   string
	noStream   bool
	noPull     bool
	noPin      bool
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <database> [-- args...]",
		Short: "Run the server against a database",
		Long: `Prepare the worktrees, the sandbox and the addons paths for a database, then
run the server on it. Arguments after -- are passed to the server.

The sandbox, worktree and addons given here are remembered for the database
and reused by later runs that do not name them.`,
		Example: `  ovm run mydb
  ovm run mydb --version 17.0 --enterprise
  ovm run mydb --subcommand shell
  ovm run mydb -- --dev=all -p 8070`,
		Args: requireArgs(1, "ovm run <database> [-- args...]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, f, args[0], args[1:])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.version, "version", "", "version to run (default: the database's version)")
	flags.BoolVarP(&f.enterprise, "enterprise", "e", false, "include the enterprise sources")
	flags.StringVar(&f.venv, "venv", "", "sandbox name (default: the version)")
	flags.StringVar(&f.worktree, "worktree", "", "worktree set name (default: the version)")
	flags.StringSliceVar(&f.addons, "addons", nil, "extra addons paths")
	flags.StringVar(&f.subcommand, "subcommand", "", "server subcommand, e.g. shell")
	flags.StringVar(&f.logLevel, "log-level", "", "server log level (default: app_log_level)")
	flags.BoolVar(&f.noStream, "no-stream", false, "capture output instead of formatting it live")
	flags.BoolVar(&f.noPull, "no-pull", false, "skip the scheduled pull check")
	flags.BoolVar(&f.noPin, "no-pin", false, "do not remember the options for this database")
	return cmd
}

func runRun(cmd *cobra.Command, f runFlags, name string, extra []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	stored, _, err := a.store.Get(ctx, name)
	if err != nil {
		a.logger.Warn("could not read stored options", "database", name, "err", err)
	}
	pin := stored.Merge(store.Pin{
		Database: name,
		Version:  f.version,
		Sandbox:  f.venv,
		Worktree: f.worktree,
		Addons:   f.addons,
	})

	db := a.database(name)
	defer db.Close()
	if exists, err := db.Exists(ctx); err != nil {
		a.logger.Debug("could not check database", "database", name, "err", err)
	} else if !exists {
		a.logger.Warn("database does not exist yet", "database", name)
	}

	ctrl := a.controller(db, process.Options{
		Version:    pin.Version,
		Enterprise: f.enterprise,
		Sandbox:    pin.Sandbox,
		Worktree:   pin.Worktree,
		Addons:     pin.Addons,
		LogLevel:   f.logLevel,
	})

	var errorLines int
	opts := process.RunOptions{
		Args:       extra,
		Subcommand: f.subcommand,
		Stream:     !f.noStream,
		Progress: func(line process.LogLine) {
			if line.Level == "ERROR" || line.Level == "CRITICAL" {
				errorLines++
			}
		},
	}
	if !f.noPull {
		opts.BeforePrepare = a.scheduledPull
	}
	result, err := ctrl.Run(ctx, opts)
	if err != nil {
		return err
	}
	if !f.noPin {
		if err := a.store.Save(ctx, pin); err != nil {
			a.logger.Warn("could not remember options", "database", name, "err", err)
		}
	}
	if f.noStream {
		writeCaptured(a.out, result)
	}
	if errorLines > 0 {
		a.renderer.Warn(fmt.Sprintf("%d error lines logged", errorLines))
	}
	if result.Status == process.StatusFailed {
		return &ExitError{Code: exitCodeOf(result)}
	}
	return nil
}

// writeCaptured prints the output of a captured run. The server logs to
// stderr, so both streams are written.
func writeCaptured(w io.Writer, result process.Result) {
	for _, text := range []string{result.Stdout, result.Stderr} {
		if text == "" {
			continue
		}
		_, _ = io.WriteString(w, text)
		if !strings.HasSuffix(text, "\n") {
			_, _ = io.WriteString(w, "\n")
		}
	}
}

// exitCodeOf maps a failed run to a process exit code. A child killed by a
// signal reports -1 and becomes 1.
func exitCodeOf(result process.Result) int {
	if result.ExitCode > 0 {
		return result.ExitCode
	}
	return 1
}
