package gitcmd

import (
	"context"
)

// WorktreePrune cleans up stale worktree metadata.
func WorktreePrune(ctx context.Context, dir string) error {
	res, err := Run(ctx, []string{"worktree", "prune"}, Options{Dir: dir})
	if err != nil {
		return wrapError("worktree prune", res, err)
	}
	return nil
}

// WorktreeListPorcelain lists worktrees in porcelain format.
func WorktreeListPorcelain(ctx context.Context, dir string) (string, error) {
	res, err := Run(ctx, []string{"worktree", "list", "--porcelain"}, Options{Dir: dir})
	if err != nil {
		return "", wrapError("worktree list", res, err)
	}
	return res.Stdout, nil
}

// WorktreeAdd checks branch out at path. The branch may already be checked
// out by another worktree of the same repository.
func WorktreeAdd(ctx context.Context, dir, path, branch string) (Result, error) {
	res, err := Run(ctx, []string{"worktree", "add", "--force", path, branch}, Options{Dir: dir})
	if err != nil {
		return res, wrapError("worktree add", res, err)
	}
	return res, nil
}

// WorktreeRemove removes a worktree.
func WorktreeRemove(ctx context.Context, dir, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = []string{"worktree", "remove", "--force", path}
	}
	res, err := Run(ctx, args, Options{Dir: dir})
	if err != nil {
		return wrapError("worktree remove", res, err)
	}
	return nil
}
