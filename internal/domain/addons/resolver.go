// Package addons resolves the ordered list of directories the target
// application loads modules from.
package addons

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/infra/gitcmd"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/paths"
)

// worktreeCandidates are probed, in order, inside every source worktree.
var worktreeCandidates = []string{"", "addons", filepath.Join("odoo", "addons"), filepath.Join("openerp", "addons")}

var manifestNames = []string{"__manifest__.py", "__openerp__.py"}

type Resolver struct {
	Logger *log.Logger
	// SubmodulePaths lists the submodule paths declared under dir.
	SubmodulePaths func(ctx context.Context, dir string) ([]string, error)
}

func NewResolver(logger *log.Logger) *Resolver {
	return &Resolver{
		Logger:         logging.Or(logger),
		SubmodulePaths: gitcmd.SubmodulePaths,
	}
}

// Resolve returns the valid addons paths found in worktrees followed by
// extra, deduplicated by absolute path in first-seen order. Each extra path
// also contributes the valid paths of its direct git submodules.
func (r *Resolver) Resolve(ctx context.Context, worktrees []string, extra []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		abs := normalize(path)
		if seen[abs] {
			return
		}
		if !IsAddonsPath(abs) {
			r.Logger.Debug("skipping invalid addons path", "path", abs)
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	for _, wt := range worktrees {
		for _, candidate := range worktreeCandidates {
			add(filepath.Join(wt, candidate))
		}
	}
	for _, path := range extra {
		add(path)
		for _, sub := range r.submodules(ctx, normalize(path)) {
			add(sub)
		}
	}
	return out
}

func (r *Resolver) submodules(ctx context.Context, dir string) []string {
	if r.SubmodulePaths == nil || !paths.DirExists(dir) {
		return nil
	}
	rel, err := r.SubmodulePaths(ctx, dir)
	if err != nil {
		r.Logger.Debug("could not list submodules", "path", dir, "err", err)
		return nil
	}
	out := make([]string, 0, len(rel))
	for _, p := range rel {
		out = append(out, filepath.Join(dir, p))
	}
	return out
}

// IsAddonsPath reports whether path is a directory with at least one direct
// child directory holding a module manifest.
func IsAddonsPath(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, name := range manifestNames {
			if ok, _ := paths.FileExists(filepath.Join(path, entry.Name(), name)); ok {
				return true
			}
		}
	}
	return false
}

// RequirementFiles lists the requirements.txt files at the root of each
// directory, without duplicates.
func RequirementFiles(dirs ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, group := range dirs {
		for _, dir := range group {
			file := filepath.Join(normalize(dir), "requirements.txt")
			if seen[file] {
				continue
			}
			seen[file] = true
			if ok, _ := paths.FileExists(file); ok {
				out = append(out, file)
			}
		}
	}
	return out
}

func normalize(path string) string {
	if expanded, err := paths.ExpandHome(path); err == nil {
		path = expanded
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
