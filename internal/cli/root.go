// Package cli wires the ovm commands.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries the exit code of a run that failed without a message of
// its own; the application already reported why.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCmd returns the ovm command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ovm",
		Short: "Run versioned Odoo checkouts against local databases",
		Long: `ovm keeps shared clones and per-version worktrees of the Odoo sources,
provisions a Python sandbox per version and runs the server against a
local PostgreSQL database with the right addons paths.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("root", "", "state root (default: $OVM_ROOT or ~/.ovm)")
	flags.String("protocol", "", "clone protocol: https or ssh")
	flags.BoolP("verbose", "v", false, "show debug logs")
	flags.Bool("yes", false, "answer yes to every prompt")
	flags.Bool("no", false, "answer no to every prompt")
	root.MarkFlagsMutuallyExclusive("yes", "no")

	root.AddCommand(
		newRunCommand(),
		newKillCommand(),
		newStatusCommand(),
		newWorktreeCommand(),
		newVenvCommand(),
		newPinsCommand(),
		newDoctorCommand(),
		newVersionCommand(),
	)
	return root
}

// Run executes the command line in os.Args.
func Run() error {
	return NewRootCmd().Execute()
}

// IsExitError reports whether err only carries an exit code.
func IsExitError(err error) (*ExitError, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr, true
	}
	return nil, false
}
