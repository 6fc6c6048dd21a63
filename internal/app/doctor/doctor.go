// Package doctor inspects the state root and repairs what it safely can.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/worktree"
	"github.com/tasuku43/ovm/internal/infra/gitcmd"
	"github.com/tasuku43/ovm/internal/infra/paths"
)

type Issue struct {
	Kind    string
	Path    string
	Message string
	Fixable bool
}

type Result struct {
	Issues   []Issue
	Warnings []error
}

type FixResult struct {
	Result
	Fixed []string
}

// Env is what the checks look at.
type Env struct {
	Layout       paths.Layout
	Repos        *repo.Manager
	Worktrees    *worktree.Manager
	Repositories []repo.Repository
	// Ping checks the database server. Nil skips the check.
	Ping func(ctx context.Context) error
}

func Check(ctx context.Context, env Env) (Result, error) {
	if env.Layout.Root == "" {
		return Result{}, fmt.Errorf("root directory is required")
	}
	var result Result
	result.Issues = append(result.Issues, checkRootLayout(env.Layout)...)

	for _, r := range env.Repositories {
		if !env.Repos.Exists(r) {
			continue
		}
		issues, err := checkRepository(ctx, env, r)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("repository %s: %w", r.FullName(), err))
			continue
		}
		result.Issues = append(result.Issues, issues...)
	}

	issues, err := checkSandboxes(env.Layout)
	if err != nil {
		result.Warnings = append(result.Warnings, err)
	}
	result.Issues = append(result.Issues, issues...)

	if env.Ping != nil {
		if err := env.Ping(ctx); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("database server unreachable: %w", err))
		}
	}
	return result, nil
}

func checkRootLayout(layout paths.Layout) []Issue {
	var issues []Issue
	dirs := []struct {
		name string
		path string
	}{
		{name: "repositories", path: layout.Repositories()},
		{name: "worktrees", path: layout.Worktrees()},
		{name: "virtualenvs", path: layout.Virtualenvs()},
	}
	for _, entry := range dirs {
		info, err := os.Stat(entry.path)
		if err != nil {
			if os.IsNotExist(err) {
				issues = append(issues, Issue{
					Kind:    "missing_root_dir",
					Path:    entry.path,
					Message: fmt.Sprintf("%s directory not found", entry.name),
					Fixable: true,
				})
				continue
			}
			issues = append(issues, Issue{
				Kind:    "invalid_root_dir",
				Path:    entry.path,
				Message: fmt.Sprintf("cannot stat %s directory: %v", entry.name, err),
			})
			continue
		}
		if !info.IsDir() {
			issues = append(issues, Issue{
				Kind:    "invalid_root_dir",
				Path:    entry.path,
				Message: fmt.Sprintf("%s is not a directory", entry.name),
			})
		}
	}
	return issues
}

func checkRepository(ctx context.Context, env Env, r repo.Repository) ([]Issue, error) {
	var issues []Issue
	want := r.RemoteURL(env.Repos.Protocol)
	got, ok, err := gitcmd.RemoteURL(ctx, r.Path, "origin")
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		issues = append(issues, Issue{
			Kind:    "missing_remote",
			Path:    r.Path,
			Message: "origin remote not configured",
			Fixable: true,
		})
	case got != want:
		issues = append(issues, Issue{
			Kind:    "remote_mismatch",
			Path:    r.Path,
			Message: fmt.Sprintf("origin is %s, expected %s", got, want),
			Fixable: true,
		})
	}

	worktrees, err := env.Worktrees.List(ctx, r)
	if err != nil {
		return issues, err
	}
	for _, wt := range worktrees {
		if !wt.Prunable {
			continue
		}
		issues = append(issues, Issue{
			Kind:    "stale_worktree",
			Path:    wt.Path,
			Message: fmt.Sprintf("worktree of %s is gone: %s", r.FullName(), wt.PrunableReason),
			Fixable: true,
		})
	}
	return issues, nil
}

func checkSandboxes(layout paths.Layout) ([]Issue, error) {
	entries, err := os.ReadDir(layout.Virtualenvs())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read virtualenvs: %w", err)
	}
	var issues []Issue
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(layout.Virtualenvs(), entry.Name())
		if ok, _ := paths.FileExists(filepath.Join(dir, "bin", "python")); ok {
			continue
		}
		issues = append(issues, Issue{
			Kind:    "broken_sandbox",
			Path:    dir,
			Message: fmt.Sprintf("sandbox %s has no interpreter, remove it and run `ovm venv create`", entry.Name()),
		})
	}
	return issues, nil
}

// Fix repairs the fixable issues found by Check and reports what remains.
func Fix(ctx context.Context, env Env) (FixResult, error) {
	result, err := Check(ctx, env)
	if err != nil {
		return FixResult{}, err
	}
	var fixed []string
	var remaining []Issue
	pruned := map[string]bool{}
	for _, issue := range result.Issues {
		if !issue.Fixable {
			remaining = append(remaining, issue)
			continue
		}
		if err := fixIssue(ctx, env, issue, pruned); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("%s %s: %w", issue.Kind, issue.Path, err))
			remaining = append(remaining, issue)
			continue
		}
		fixed = append(fixed, fmt.Sprintf("%s: %s", issue.Kind, issue.Path))
	}
	result.Issues = remaining
	return FixResult{Result: result, Fixed: fixed}, nil
}

func fixIssue(ctx context.Context, env Env, issue Issue, pruned map[string]bool) error {
	switch issue.Kind {
	case "missing_root_dir":
		return os.MkdirAll(issue.Path, 0o755)
	case "missing_remote", "remote_mismatch":
		r, ok := repositoryAt(env.Repositories, issue.Path)
		if !ok {
			return fmt.Errorf("unknown repository")
		}
		return gitcmd.SetRemoteURL(ctx, r.Path, "origin", r.RemoteURL(env.Repos.Protocol))
	case "stale_worktree":
		for _, r := range env.Repositories {
			if pruned[r.Path] || !env.Repos.Exists(r) {
				continue
			}
			worktrees, err := env.Worktrees.List(ctx, r)
			if err != nil {
				return err
			}
			for _, wt := range worktrees {
				if wt.Path != issue.Path {
					continue
				}
				pruned[r.Path] = true
				return env.Worktrees.PruneStale(ctx, r)
			}
		}
		// already pruned with another worktree of the same repository
		return nil
	}
	return fmt.Errorf("no fix for %s", issue.Kind)
}

func repositoryAt(repos []repo.Repository, path string) (repo.Repository, bool) {
	for _, r := range repos {
		if r.Path == path {
			return r, true
		}
	}
	return repo.Repository{}, false
}
