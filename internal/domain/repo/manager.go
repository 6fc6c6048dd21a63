package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/infra/gitcmd"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/paths"
)

var ErrCloneFailed = errors.New("shared clone failed")

const defaultBranch = "master"

// Manager owns the shared clones below Root. Clones are never deleted.
type Manager struct {
	Root     string
	Protocol string
	Logger   *log.Logger

	mu      sync.Mutex
	fetches map[string]*fetchTask
}

type fetchTask struct {
	done chan struct{}
	err  error
}

func NewManager(root, protocol string, logger *log.Logger) *Manager {
	return &Manager{
		Root:     root,
		Protocol: protocol,
		Logger:   logging.Or(logger),
		fetches:  make(map[string]*fetchTask),
	}
}

// Resolve parses spec and fills in the shared clone path.
func (m *Manager) Resolve(spec string) (Repository, error) {
	r, err := Parse(spec)
	if err != nil {
		return Repository{}, err
	}
	r.Path = filepath.Join(m.Root, r.Organization, r.Name)
	return r, nil
}

// Exists reports whether the shared clone is present.
func (m *Manager) Exists(r Repository) bool {
	return paths.DirExists(filepath.Join(r.Path, ".git"))
}

// EnsureCloned clones r when its shared path is absent. A failed clone is
// fatal for the caller.
func (m *Manager) EnsureCloned(ctx context.Context, r Repository) error {
	if r.Path == "" {
		return fmt.Errorf("repository %s has no local path", r.FullName())
	}
	if m.Exists(r) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		return fmt.Errorf("create repository dir: %w", err)
	}
	url := r.RemoteURL(m.Protocol)
	m.Logger.Info("cloning repository", "repository", r.FullName(), "url", url)
	if err := gitcmd.Clone(ctx, url, r.Path, defaultBranch); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCloneFailed, r.FullName(), err)
	}
	return nil
}

// Fetch updates the remote-tracking refs of r at most once per Manager.
// Later calls return the result of the first one.
func (m *Manager) Fetch(ctx context.Context, r Repository) error {
	key := r.Path
	m.mu.Lock()
	if m.fetches == nil {
		m.fetches = make(map[string]*fetchTask)
	}
	if task, ok := m.fetches[key]; ok {
		m.mu.Unlock()
		<-task.done
		return task.err
	}
	task := &fetchTask{done: make(chan struct{})}
	m.fetches[key] = task
	m.mu.Unlock()

	defer close(task.done)
	m.Logger.Debug("fetching repository", "repository", r.FullName())
	if err := gitcmd.Fetch(ctx, r.Path, "origin"); err != nil {
		m.Logger.Warn("fetch failed", "repository", r.FullName(), "err", err)
		task.err = err
	}
	return task.err
}

// Fetched reports whether Fetch already ran for r.
func (m *Manager) Fetched(r Repository) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fetches[r.Path]
	return ok
}
