package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tasuku43/ovm/internal/infra/logging"
)

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type Options struct {
	Dir string
	// ShowOutput logs stdout/stderr at info level even when debug logging is off.
	ShowOutput bool
}

func Run(ctx context.Context, args []string, opts Options) (Result, error) {
	if err := validateArgs(args); err != nil {
		return Result{
			Stderr:   err.Error(),
			ExitCode: -1,
		}, err
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := logging.Default()
	trace := logging.NewTrace("git")
	logging.LogCommand(logger, trace, logging.FormatCommand("git", args))
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	logging.LogStdoutLines(logger, trace, result.Stdout)
	logging.LogStderrLines(logger, trace, result.Stderr)
	logging.LogExit(logger, trace, result.ExitCode)
	if opts.ShowOutput {
		for _, line := range logging.SplitLines(result.Stdout + "\n" + result.Stderr) {
			logger.Info(strings.TrimSpace(line))
		}
	}
	if err != nil {
		return result, fmt.Errorf("git %v failed: %w", args, err)
	}
	return result, nil
}

// wrapError attaches git's own diagnostic text to err.
func wrapError(op string, res Result, err error) error {
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return fmt.Errorf("git %s failed: %w: %s", op, err, stderr)
	}
	return fmt.Errorf("git %s failed: %w", op, err)
}

func validateArgs(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("git command is required")
	}
	if !isAllowedSubcommand(args[0]) {
		return fmt.Errorf("git subcommand %q is not allowed", args[0])
	}
	return nil
}

func isAllowedSubcommand(subcommand string) bool {
	_, ok := allowedSubcommands[subcommand]
	return ok
}

var allowedSubcommands = map[string]struct{}{
	"clone":     {},
	"config":    {},
	"fetch":     {},
	"remote":    {},
	"reset":     {},
	"rev-list":  {},
	"rev-parse": {},
	"stash":     {},
	"status":    {},
	"worktree":  {},
	"version":   {},
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	return exitErr.ExitCode()
}
