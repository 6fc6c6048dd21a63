// Package worktree keeps one linked checkout per repository and target
// version next to the shared clones.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/schedule"
	"github.com/tasuku43/ovm/internal/infra/gitcmd"
	"github.com/tasuku43/ovm/internal/infra/logging"
)

// Prompter asks the user to decide. Implementations used in scripts answer
// with a preset default.
type Prompter interface {
	Confirm(message string, def bool) (bool, error)
	MultiSelect(message string, options []string, defaults []string) ([]string, error)
}

// Manager reconciles worktrees below Root, laid out as <name>/<repo-name>.
type Manager struct {
	Root     string
	Repos    *repo.Manager
	Prompter Prompter
	Policy   schedule.Policy
	Logger   *log.Logger
}

func NewManager(root string, repos *repo.Manager, prompter Prompter, logger *log.Logger) *Manager {
	return &Manager{
		Root:     root,
		Repos:    repos,
		Prompter: prompter,
		Policy:   schedule.Weekly,
		Logger:   logging.Or(logger),
	}
}

// PathFor returns where the worktree of r named name lives.
func (m *Manager) PathFor(r repo.Repository, name string) string {
	return filepath.Join(m.Root, name, r.Name)
}

// List returns every worktree registered on the shared clone of r, including
// the clone itself. It is re-read on every call.
func (m *Manager) List(ctx context.Context, r repo.Repository) ([]Worktree, error) {
	out, err := gitcmd.WorktreeListPorcelain(ctx, r.Path)
	if err != nil {
		return nil, err
	}
	return ParsePorcelain(out, m.Logger), nil
}

// Managed returns the worktrees of r that live below Root.
func (m *Manager) Managed(ctx context.Context, r repo.Repository) ([]Worktree, error) {
	all, err := m.List(ctx, r)
	if err != nil {
		return nil, err
	}
	var out []Worktree
	for _, wt := range all {
		if wt.Bare || !within(m.Root, wt.Path) {
			continue
		}
		out = append(out, wt)
	}
	return out, nil
}

// PruneStale drops bookkeeping of worktrees whose directory is gone. Git is
// only invoked when at least one worktree reports prunable.
func (m *Manager) PruneStale(ctx context.Context, r repo.Repository) error {
	worktrees, err := m.List(ctx, r)
	if err != nil {
		return err
	}
	var stale []Worktree
	for _, wt := range worktrees {
		if wt.Prunable {
			stale = append(stale, wt)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	for _, wt := range stale {
		m.Logger.Warn("pruning stale worktree", "repository", r.FullName(), "path", wt.Path, "reason", wt.PrunableReason)
	}
	return gitcmd.WorktreePrune(ctx, r.Path)
}

// Ensure returns the worktree of r named name on branch, creating it when
// missing. Calling it again with the same arguments is a no-op.
func (m *Manager) Ensure(ctx context.Context, r repo.Repository, name, branch string) (Worktree, error) {
	path := m.PathFor(r, name)
	if err := m.PruneStale(ctx, r); err != nil {
		m.Logger.Warn("could not prune worktrees", "repository", r.FullName(), "err", err)
	}

	worktrees, err := m.List(ctx, r)
	if err != nil {
		return Worktree{}, err
	}
	if existing, ok := find(worktrees, path); ok {
		if !existing.Detached && existing.Branch == branch {
			return existing, nil
		}
		return m.reconcile(ctx, r, existing, branch)
	}
	return m.add(ctx, r, path, branch)
}

func (m *Manager) reconcile(ctx context.Context, r repo.Repository, existing Worktree, branch string) (Worktree, error) {
	current := existing.Branch
	if existing.Detached || current == "" {
		current = "a detached HEAD"
	}
	message := fmt.Sprintf("Worktree %s is on %s instead of %s, recreate it?", existing.Path, current, branch)
	recreate, err := m.confirm(message, true)
	if err != nil {
		return Worktree{}, err
	}
	if !recreate {
		m.Logger.Warn("keeping worktree on unexpected branch", "path", existing.Path, "branch", current, "expected", branch)
		return existing, nil
	}
	if err := gitcmd.WorktreeRemove(ctx, r.Path, existing.Path, true); err != nil {
		m.Logger.Warn("could not remove worktree", "path", existing.Path, "err", err)
		return Worktree{}, err
	}
	return m.add(ctx, r, existing.Path, branch)
}

func (m *Manager) add(ctx context.Context, r repo.Repository, path, branch string) (Worktree, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Worktree{}, fmt.Errorf("create worktree dir: %w", err)
	}
	m.Logger.Info("creating worktree", "repository", r.FullName(), "branch", branch, "path", path)
	res, addErr := gitcmd.WorktreeAdd(ctx, r.Path, path, branch)

	worktrees, err := m.List(ctx, r)
	if err != nil {
		return Worktree{}, err
	}
	if wt, ok := find(worktrees, path); ok {
		if addErr != nil {
			// Another invocation created it first.
			m.Logger.Debug("worktree already registered", "path", path, "err", addErr)
		}
		return wt, nil
	}
	if addErr == nil {
		return Worktree{}, fmt.Errorf("worktree %s was not registered after creation", path)
	}
	if strings.Contains(res.Stderr, "invalid reference") {
		addErr = fmt.Errorf("%w (branch %q does not exist in %s, did you forget to use '--version master'?)", addErr, branch, r.FullName())
	}
	m.Logger.Warn("could not create worktree", "repository", r.FullName(), "err", addErr)
	return Worktree{}, addErr
}

// EnsureAll ensures one worktree named name per repository.
func (m *Manager) EnsureAll(ctx context.Context, repos []repo.Repository, name, branch string) ([]Worktree, error) {
	if m.Drifted(ctx, repos, name, branch) {
		m.Logger.Info("reconciling worktrees", "name", name, "branch", branch)
	}
	out := make([]Worktree, 0, len(repos))
	for _, r := range repos {
		if err := m.Repos.EnsureCloned(ctx, r); err != nil {
			return nil, err
		}
		wt, err := m.Ensure(ctx, r, name, branch)
		if err != nil {
			return nil, err
		}
		out = append(out, wt)
	}
	return out, nil
}

// Drifted reports whether the number of worktrees named name on branch
// differs from the number of repositories.
func (m *Manager) Drifted(ctx context.Context, repos []repo.Repository, name, branch string) bool {
	count := 0
	for _, r := range repos {
		if !m.Repos.Exists(r) {
			continue
		}
		worktrees, err := m.List(ctx, r)
		if err != nil {
			continue
		}
		if wt, ok := find(worktrees, m.PathFor(r, name)); ok && !wt.Detached && wt.Branch == branch {
			count++
		}
	}
	return count != len(repos)
}

// PendingChanges returns how many upstream commits wt is missing.
func (m *Manager) PendingChanges(ctx context.Context, wt Worktree) (int, error) {
	behind, _, err := gitcmd.AheadBehind(ctx, wt.Path)
	if err != nil {
		return 0, err
	}
	return behind, nil
}

func (m *Manager) confirm(message string, def bool) (bool, error) {
	if m.Prompter == nil {
		return def, nil
	}
	return m.Prompter.Confirm(message, def)
}

func (m *Manager) multiSelect(message string, options, defaults []string) ([]string, error) {
	if m.Prompter == nil {
		return defaults, nil
	}
	return m.Prompter.MultiSelect(message, options, defaults)
}

func find(worktrees []Worktree, path string) (Worktree, bool) {
	for _, wt := range worktrees {
		if samePath(wt.Path, path) {
			return wt, true
		}
	}
	return Worktree{}, false
}

func samePath(a, b string) bool {
	return realpath(a) == realpath(b)
}

func realpath(path string) string {
	cleaned := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		return resolved
	}
	// The leaf may not exist yet; resolve its parent instead.
	if parent, err := filepath.EvalSymlinks(filepath.Dir(cleaned)); err == nil {
		return filepath.Join(parent, filepath.Base(cleaned))
	}
	return cleaned
}

func within(root, path string) bool {
	rel, err := filepath.Rel(realpath(root), realpath(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
