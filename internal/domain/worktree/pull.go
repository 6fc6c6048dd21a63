package worktree

import (
	"context"
	"fmt"
	"time"

	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/infra/gitcmd"
)

// Outdated is a managed worktree missing upstream commits.
type Outdated struct {
	Repository repo.Repository
	Worktree   Worktree
	Behind     int
}

func (o Outdated) Label() string {
	return fmt.Sprintf("%s (%s, %d commits behind)", o.Worktree.Path, o.Repository.FullName(), o.Behind)
}

// Pull force-updates wt to its upstream tip. Uncommitted changes are stashed
// and restored; local commits missing from the upstream are lost.
func (m *Manager) Pull(ctx context.Context, r repo.Repository, wt Worktree) error {
	if err := m.Repos.Fetch(ctx, r); err != nil {
		return err
	}
	dirty, err := gitcmd.Dirty(ctx, wt.Path)
	if err != nil {
		m.Logger.Warn("could not inspect worktree", "path", wt.Path, "err", err)
		return err
	}
	if dirty {
		if err := gitcmd.StashPush(ctx, wt.Path, "ovm: changes before pull"); err != nil {
			m.Logger.Warn("could not stash changes", "path", wt.Path, "err", err)
			return err
		}
	}
	m.Logger.Info("pulling worktree", "path", wt.Path, "branch", wt.Branch)
	resetErr := gitcmd.ResetHard(ctx, wt.Path, "@{u}")
	if resetErr != nil {
		m.Logger.Warn("could not pull worktree", "path", wt.Path, "err", resetErr)
	}
	if dirty {
		if err := gitcmd.StashPop(ctx, wt.Path); err != nil {
			m.Logger.Warn("stashed changes could not be restored, they are kept in the stash", "path", wt.Path, "err", err)
		}
	}
	return resetErr
}

// Outdated fetches each repository once and lists the managed worktrees that
// are behind their upstream.
func (m *Manager) Outdated(ctx context.Context, repos []repo.Repository) []Outdated {
	var out []Outdated
	for _, r := range repos {
		if !m.Repos.Exists(r) {
			continue
		}
		if err := m.Repos.Fetch(ctx, r); err != nil {
			continue
		}
		worktrees, err := m.Managed(ctx, r)
		if err != nil {
			m.Logger.Warn("could not list worktrees", "repository", r.FullName(), "err", err)
			continue
		}
		for _, wt := range worktrees {
			if wt.Detached || wt.Branch == "" || wt.Prunable {
				continue
			}
			behind, err := m.PendingChanges(ctx, wt)
			if err != nil {
				m.Logger.Warn("could not count pending changes", "path", wt.Path, "err", err)
				continue
			}
			if behind > 0 {
				out = append(out, Outdated{Repository: r, Worktree: wt, Behind: behind})
			}
		}
	}
	return out
}

// PullOutdated offers to update every outdated worktree: a single one is
// confirmed, several go through a multi-select defaulting to all of them.
// It returns how many worktrees were pulled.
func (m *Manager) PullOutdated(ctx context.Context, repos []repo.Repository) (int, error) {
	outdated := m.Outdated(ctx, repos)
	var selected []Outdated
	switch len(outdated) {
	case 0:
		return 0, nil
	case 1:
		ok, err := m.confirm(fmt.Sprintf("%s has updates, pull now?", outdated[0].Label()), true)
		if err != nil {
			return 0, err
		}
		if ok {
			selected = outdated
		}
	default:
		labels := make([]string, 0, len(outdated))
		for _, o := range outdated {
			labels = append(labels, o.Label())
		}
		chosen, err := m.multiSelect("Select the worktrees to pull", labels, labels)
		if err != nil {
			return 0, err
		}
		picked := make(map[string]bool, len(chosen))
		for _, label := range chosen {
			picked[label] = true
		}
		for _, o := range outdated {
			if picked[o.Label()] {
				selected = append(selected, o)
			}
		}
	}

	pulled := 0
	for _, o := range selected {
		if err := m.Pull(ctx, o.Repository, o.Worktree); err != nil {
			continue
		}
		pulled++
	}
	return pulled, nil
}

// ScheduledPull runs PullOutdated when the policy window that ends at next
// has elapsed, and returns the boundary to persist for the next check. When
// not due it returns next untouched and does nothing else.
func (m *Manager) ScheduledPull(ctx context.Context, repos []repo.Repository, next, now time.Time) (time.Time, error) {
	if !m.Policy.Due(next, now) {
		return next, nil
	}
	boundary := m.Policy.NextBoundary(now)
	if _, err := m.PullOutdated(ctx, repos); err != nil {
		return boundary, err
	}
	return boundary, nil
}
