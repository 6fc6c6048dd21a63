package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/testutil/gittest"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantName string
		wantURL  string
		wantErr  bool
	}{
		{name: "shorthand", input: "odoo/enterprise", wantName: "odoo/enterprise"},
		{name: "ssh", input: "git@github.com:odoo/odoo.git", wantName: "odoo/odoo", wantURL: "git@github.com:odoo/odoo.git"},
		{name: "https", input: "https://github.com/odoo/design-themes", wantName: "odoo/design-themes", wantURL: "https://github.com/odoo/design-themes"},
		{name: "file", input: "file:///tmp/remotes/odoo/odoo.git", wantName: "odoo/odoo", wantURL: "file:///tmp/remotes/odoo/odoo.git"},
		{name: "too deep", input: "github.com/odoo/odoo", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "unknown scheme", input: "ftp://example.com/odoo/odoo", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Parse(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, r.FullName())
			assert.Equal(t, tc.wantURL, r.URL)
		})
	}
}

func TestRemoteURL(t *testing.T) {
	r, err := Parse("odoo/odoo")
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:odoo/odoo.git", r.RemoteURL("ssh"))
	assert.Equal(t, "https://github.com/odoo/odoo.git", r.RemoteURL("https"))
}

func TestEnsureClonedAndFetchOnce(t *testing.T) {
	gittest.Require(t)
	tmp := t.TempDir()
	gittest.Isolate(t, tmp)
	remote := gittest.NewRemote(t, tmp, "odoo", "odoo", "17.0")

	m := NewManager(filepath.Join(tmp, "repositories"), "https", logging.Discard())
	r, err := m.Resolve(remote.URL)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "repositories", "odoo", "odoo"), r.Path)
	assert.False(t, m.Exists(r))

	ctx := context.Background()
	require.NoError(t, m.EnsureCloned(ctx, r))
	assert.True(t, m.Exists(r))
	marker := filepath.Join(r.Path, "marker")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))
	require.NoError(t, m.EnsureCloned(ctx, r))
	assert.FileExists(t, marker)

	require.NoError(t, m.Fetch(ctx, r))
	assert.True(t, m.Fetched(r))
	require.NoError(t, os.RemoveAll(remote.Path))
	require.NoError(t, m.Fetch(ctx, r))
}

func TestEnsureClonedFailure(t *testing.T) {
	gittest.Require(t)
	tmp := t.TempDir()
	gittest.Isolate(t, tmp)

	m := NewManager(filepath.Join(tmp, "repositories"), "https", logging.Discard())
	r, err := m.Resolve("file://" + filepath.Join(tmp, "missing", "odoo", "odoo.git"))
	require.NoError(t, err)
	err = m.EnsureCloned(context.Background(), r)
	require.ErrorIs(t, err, ErrCloneFailed)
}
