package gitcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Clone creates a full clone with submodules, checking out branch.
func Clone(ctx context.Context, url, dest, branch string) error {
	args := []string{"clone", "--recurse-submodules"}
	if strings.TrimSpace(branch) != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	res, err := Run(ctx, args, Options{})
	if err != nil {
		return wrapError("clone", res, err)
	}
	return nil
}

// Fetch updates remote-tracking refs of remote.
func Fetch(ctx context.Context, dir, remote string) error {
	res, err := Run(ctx, []string{"fetch", remote}, Options{Dir: dir})
	if err != nil {
		return wrapError("fetch", res, err)
	}
	return nil
}

// AheadBehind compares HEAD against its upstream.
func AheadBehind(ctx context.Context, dir string) (behind int, ahead int, err error) {
	res, err := Run(ctx, []string{"rev-list", "--left-right", "--count", "@{u}...HEAD"}, Options{Dir: dir})
	if err != nil {
		return 0, 0, wrapError("rev-list", res, err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", strings.TrimSpace(res.Stdout))
	}
	behind, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse rev-list output: %w", err)
	}
	ahead, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse rev-list output: %w", err)
	}
	return behind, ahead, nil
}

// Dirty reports uncommitted changes in the working tree.
func Dirty(ctx context.Context, dir string) (bool, error) {
	res, err := Run(ctx, []string{"status", "--porcelain"}, Options{Dir: dir})
	if err != nil {
		return false, wrapError("status", res, err)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

func StashPush(ctx context.Context, dir, message string) error {
	res, err := Run(ctx, []string{"stash", "push", "--include-untracked", "--message", message}, Options{Dir: dir})
	if err != nil {
		return wrapError("stash push", res, err)
	}
	return nil
}

func StashPop(ctx context.Context, dir string) error {
	res, err := Run(ctx, []string{"stash", "pop"}, Options{Dir: dir})
	if err != nil {
		return wrapError("stash pop", res, err)
	}
	return nil
}

// ResetHard moves the current branch to ref and discards local changes.
func ResetHard(ctx context.Context, dir, ref string) error {
	res, err := Run(ctx, []string{"reset", "--hard", ref}, Options{Dir: dir})
	if err != nil {
		return wrapError("reset", res, err)
	}
	return nil
}

// SubmodulePaths lists the paths declared in the .gitmodules file of dir.
func SubmodulePaths(ctx context.Context, dir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(dir, ".gitmodules")); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	res, err := Run(ctx, []string{"config", "--file", ".gitmodules", "--get-regexp", `^submodule\..*\.path$`}, Options{Dir: dir})
	if err != nil {
		// --get-regexp exits 1 when nothing matches.
		if res.ExitCode == 1 {
			return nil, nil
		}
		return nil, wrapError("config", res, err)
	}
	var paths []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		paths = append(paths, fields[1])
	}
	return paths, nil
}
