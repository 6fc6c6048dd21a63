package paths

import "path/filepath"

// Layout is the on-disk arrangement below the state root.
type Layout struct {
	Root string
}

// Repositories holds one shared clone per repository, as <org>/<name>.
func (l Layout) Repositories() string {
	return filepath.Join(l.Root, "repositories")
}

// Worktrees holds linked checkouts, as <worktree-name>/<repo-name>.
func (l Layout) Worktrees() string {
	return filepath.Join(l.Root, "worktrees")
}

func (l Layout) Virtualenvs() string {
	return filepath.Join(l.Root, "virtualenvs")
}

func (l Layout) ConfigFile() string {
	return filepath.Join(l.Root, "config.yaml")
}

func (l Layout) StateFile() string {
	return filepath.Join(l.Root, "state.yaml")
}

func (l Layout) StoreFile() string {
	return filepath.Join(l.Root, "ovm.db")
}
