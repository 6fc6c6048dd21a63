package addons

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/testutil/gittest"
)

func writeModule(t *testing.T, dir, module, manifest string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, module), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, module, manifest), []byte("{}\n"), 0o644))
}

func TestIsAddonsPath(t *testing.T) {
	tmp := t.TempDir()

	modern := filepath.Join(tmp, "modern")
	writeModule(t, modern, "sale", "__manifest__.py")
	assert.True(t, IsAddonsPath(modern))

	legacy := filepath.Join(tmp, "legacy")
	writeModule(t, legacy, "account", "__openerp__.py")
	assert.True(t, IsAddonsPath(legacy))

	nested := filepath.Join(tmp, "nested")
	writeModule(t, filepath.Join(nested, "deep"), "sale", "__manifest__.py")
	assert.False(t, IsAddonsPath(nested))

	empty := filepath.Join(tmp, "empty")
	require.NoError(t, os.MkdirAll(filepath.Join(empty, "module"), 0o755))
	assert.False(t, IsAddonsPath(empty))

	assert.False(t, IsAddonsPath(filepath.Join(tmp, "missing")))
}

func TestResolveFourEntries(t *testing.T) {
	gittest.Require(t)
	tmp := t.TempDir()

	core := filepath.Join(tmp, "worktrees", "17.0", "odoo")
	writeModule(t, filepath.Join(core, "addons"), "sale", "__manifest__.py")
	require.NoError(t, os.MkdirAll(filepath.Join(core, "odoo"), 0o755))

	enterprise := filepath.Join(tmp, "worktrees", "17.0", "enterprise")
	writeModule(t, enterprise, "web_studio", "__manifest__.py")

	custom := filepath.Join(tmp, "custom")
	writeModule(t, custom, "my_module", "__manifest__.py")
	writeModule(t, filepath.Join(custom, "vendor"), "vendor_module", "__manifest__.py")
	require.NoError(t, os.WriteFile(filepath.Join(custom, ".gitmodules"), []byte("[submodule \"vendor\"]\n\tpath = vendor\n\turl = https://example.com/vendor.git\n"), 0o644))

	resolver := NewResolver(logging.Discard())
	got := resolver.Resolve(context.Background(), []string{core, enterprise}, []string{custom + string(filepath.Separator)})
	assert.Equal(t, []string{
		filepath.Join(core, "addons"),
		enterprise,
		custom,
		filepath.Join(custom, "vendor"),
	}, got)
}

func TestResolveDeduplicatesAndDropsInvalid(t *testing.T) {
	tmp := t.TempDir()
	core := filepath.Join(tmp, "odoo")
	writeModule(t, filepath.Join(core, "odoo", "addons"), "base", "__manifest__.py")
	writeModule(t, filepath.Join(core, "addons"), "web", "__manifest__.py")

	resolver := &Resolver{
		Logger: logging.Discard(),
		SubmodulePaths: func(ctx context.Context, dir string) ([]string, error) {
			return nil, errors.New("not a repository")
		},
	}
	got := resolver.Resolve(context.Background(),
		[]string{core, core},
		[]string{filepath.Join(core, "addons"), filepath.Join(tmp, "missing")},
	)
	assert.Equal(t, []string{
		filepath.Join(core, "addons"),
		filepath.Join(core, "odoo", "addons"),
	}, got)
}

func TestResolveOnlyScansOneSubmoduleLevel(t *testing.T) {
	tmp := t.TempDir()
	custom := filepath.Join(tmp, "custom")
	writeModule(t, filepath.Join(custom, "vendor"), "a", "__manifest__.py")
	writeModule(t, filepath.Join(custom, "vendor", "nested"), "b", "__manifest__.py")

	var scanned []string
	resolver := &Resolver{
		Logger: logging.Discard(),
		SubmodulePaths: func(ctx context.Context, dir string) ([]string, error) {
			scanned = append(scanned, dir)
			if dir == custom {
				return []string{"vendor"}, nil
			}
			return []string{"nested"}, nil
		},
	}
	got := resolver.Resolve(context.Background(), nil, []string{custom})
	assert.Equal(t, []string{filepath.Join(custom, "vendor")}, got)
	assert.Equal(t, []string{custom}, scanned)
}

func TestRequirementFiles(t *testing.T) {
	tmp := t.TempDir()
	core := filepath.Join(tmp, "odoo")
	custom := filepath.Join(tmp, "custom")
	require.NoError(t, os.MkdirAll(core, 0o755))
	require.NoError(t, os.MkdirAll(custom, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(core, "requirements.txt"), []byte("Babel\n"), 0o644))

	got := RequirementFiles([]string{core, custom}, []string{core})
	assert.Equal(t, []string{filepath.Join(core, "requirements.txt")}, got)
}
