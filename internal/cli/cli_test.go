package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasuku43/ovm/internal/domain/process"
	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/worktree"
	"github.com/tasuku43/ovm/internal/infra/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ovm dev"), out)
}

func TestRunRequiresDatabase(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: ovm run")
}

func TestYesAndNoAreExclusive(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "--yes", "--no", "pins")
	require.Error(t, err)
}

func TestPinsListAndForget(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "--root", root, "pins")
	require.NoError(t, err)
	assert.Contains(t, out, "no databases remembered")

	st, err := store.Open(filepath.Join(root, "ovm.db"))
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), store.Pin{Database: "mydb", Version: "17.0", Sandbox: "venv17"}))
	require.NoError(t, st.Close())

	out, err = execute(t, "--root", root, "pins")
	require.NoError(t, err)
	assert.Contains(t, out, "mydb")
	assert.Contains(t, out, "venv17")

	out, err = execute(t, "--root", root, "pins", "forget", "mydb")
	require.NoError(t, err)
	assert.Contains(t, out, "forgot mydb")

	out, err = execute(t, "--root", root, "pins")
	require.NoError(t, err)
	assert.Contains(t, out, "no databases remembered")
}

func TestWorktreeListWithoutClones(t *testing.T) {
	out, err := execute(t, "--root", t.TempDir(), "worktree", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no worktrees")
}

func TestNewWorktreeRow(t *testing.T) {
	root := filepath.Join("/tmp", "ovm", "worktrees")
	r := repo.Repository{Organization: "odoo", Name: "odoo"}

	row := newWorktreeRow(root, r, worktree.Worktree{Path: filepath.Join(root, "17.0", "odoo"), Branch: "17.0"})
	assert.Equal(t, worktreeRow{Name: "17.0", Repository: "odoo/odoo", Branch: "17.0", Path: filepath.Join(root, "17.0", "odoo")}, row)

	row = newWorktreeRow(root, r, worktree.Worktree{Path: filepath.Join(root, "dev", "odoo"), Detached: true, Prunable: true})
	assert.Equal(t, "(detached)", row.Branch)
	assert.Equal(t, "prunable", row.State)
}

func TestRenderWorktrees(t *testing.T) {
	var buf bytes.Buffer
	renderWorktrees(&buf, []worktreeRow{{Name: "17.0", Repository: "odoo/odoo", Branch: "17.0", Path: "/w/17.0/odoo"}})
	out := buf.String()
	for _, want := range []string{"NAME", "REPOSITORY", "odoo/odoo", "/w/17.0/odoo"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderPins(t *testing.T) {
	var buf bytes.Buffer
	renderPins(&buf, []store.Pin{{Database: "mydb", Addons: []string{"/a", "/b"}, UpdatedAt: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)}})
	out := buf.String()
	assert.Contains(t, out, "DATABASE")
	assert.Contains(t, out, "mydb")
	assert.Contains(t, out, "/a")
	assert.Contains(t, out, "/b")
}

func TestPinFields(t *testing.T) {
	assert.Empty(t, pinFields("", "", nil))
	assert.Equal(t, [][2]string{{"venv", "v17"}, {"addons", "/a,/b"}}, pinFields("v17", "", []string{"/a", "/b"}))
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 3}
	exitErr, ok := IsExitError(err)
	require.True(t, ok)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "exit status 3", err.Error())

	_, ok = IsExitError(assert.AnError)
	assert.False(t, ok)
}

func TestWriteCapturedIncludesStderr(t *testing.T) {
	var buf bytes.Buffer
	writeCaptured(&buf, process.Result{
		Stdout: "done\n",
		Stderr: "2024-01-01 10:00:00,000 1 INFO mydb odoo.modules.loading: loading 1 modules",
	})
	assert.Equal(t, "done\n2024-01-01 10:00:00,000 1 INFO mydb odoo.modules.loading: loading 1 modules\n", buf.String())

	buf.Reset()
	writeCaptured(&buf, process.Result{})
	assert.Empty(t, buf.String())
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 3, exitCodeOf(process.Result{ExitCode: 3}))
	assert.Equal(t, 1, exitCodeOf(process.Result{ExitCode: -1}))
}

func TestDoctorOnFreshRoot(t *testing.T) {
	t.Setenv("OVM_POSTGRES__PORT", "1")
	out, err := execute(t, "--root", t.TempDir(), "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "database server unreachable")
}
