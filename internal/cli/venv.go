package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/domain/version"
)

func newVenvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venv",
		Short: "Manage the Python sandboxes",
	}
	cmd.AddCommand(newVenvCreateCommand(), newVenvInstallCommand())
	return cmd
}

func newVenvCreateCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create <version>",
		Short: "Create the sandbox of a version",
		Long: `Create the sandbox for a version with the interpreter it needs. The sandbox
is named after the version unless --name is given.`,
		Args: requireArgs(1, "ovm venv create <version> [--name name]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			spec := a.sandboxes.Spec(name, v)
			a.renderer.Step(fmt.Sprintf("sandbox %s (%s)", spec.Name, spec.Interpreter))
			if err := a.sandboxes.Prepare(cmd.Context(), spec, v, nil); err != nil {
				return err
			}
			a.renderer.Result(spec.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sandbox name (default: the version)")
	return cmd
}

func newVenvInstallCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "install <version> <requirements.txt>...",
		Short: "Install missing requirements into a sandbox",
		Args:  requireArgs(2, "ovm venv install <version> <requirements.txt>... [--name name]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			spec := a.sandboxes.Spec(name, v)
			for _, file := range args[1:] {
				a.renderer.Step(file)
			}
			if err := a.sandboxes.Prepare(cmd.Context(), spec, v, args[1:]); err != nil {
				return err
			}
			a.renderer.Result(fmt.Sprintf("sandbox %s is up to date", spec.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sandbox name (default: the version)")
	return cmd
}
