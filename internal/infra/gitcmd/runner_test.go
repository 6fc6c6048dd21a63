package gitcmd

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasuku43/ovm/internal/testutil/gittest"
)

func TestRunRejectsUnknownSubcommand(t *testing.T) {
	res, err := Run(context.Background(), []string{"push", "origin"}, Options{})
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, err.Error(), `"push"`)

	_, err = Run(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestSubmodulePaths(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	_, err := Run(context.Background(), []string{"version"}, Options{Dir: dir})
	require.NoError(t, err)

	paths, err := SubmodulePaths(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, paths)

	gitmodules := "[submodule \"vendor\"]\n\tpath = vendor\n\turl = https://example.com/vendor.git\n" +
		"[submodule \"tools\"]\n\tpath = lib/tools\n\turl = https://example.com/tools.git\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitmodules"), []byte(gitmodules), 0o644))

	paths, err = SubmodulePaths(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "lib/tools"}, paths)
}

func TestRemoteURL(t *testing.T) {
	gittest.Require(t)
	tmp := t.TempDir()
	gittest.Isolate(t, tmp)
	dir := filepath.Join(tmp, "clone")
	gittest.Run(t, "", "init", dir)
	ctx := context.Background()

	_, ok, err := RemoteURL(ctx, dir, "origin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetRemoteURL(ctx, dir, "origin", "https://github.com/odoo/odoo.git"))
	url, ok, err := RemoteURL(ctx, dir, "origin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://github.com/odoo/odoo.git", url)

	require.NoError(t, SetRemoteURL(ctx, dir, "origin", "git@github.com:odoo/odoo.git"))
	url, _, err = RemoteURL(ctx, dir, "origin")
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:odoo/odoo.git", url)
}
