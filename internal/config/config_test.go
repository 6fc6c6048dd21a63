package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("ovm", pflag.ContinueOnError)
	flags.String("root", "", "")
	flags.String("protocol", "", "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("OVM_ROOT", root)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "https", cfg.Protocol)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Empty(t, cfg.File)

	policy, err := cfg.Schedule()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, policy.WeekStart)
}

func TestLoadPrecedence(t *testing.T) {
	root := t.TempDir()
	config := "protocol: ssh\napp_log_level: warn\nweek_start: sun\npostgres:\n  host: db.local\n  user: odoo\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte(config), 0o644))
	t.Setenv("OVM_POSTGRES__USER", "from-env")
	t.Setenv("OVM_APP_LOG_LEVEL", "debug")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--root", root, "--protocol", "https", "-v"}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config.yaml"), cfg.File)
	assert.Equal(t, "https", cfg.Protocol)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "debug", cfg.AppLogLevel)
	assert.Equal(t, "db.local", cfg.Postgres.Host)
	assert.Equal(t, "from-env", cfg.Postgres.User)
	assert.Equal(t, "db.local", cfg.Postgres.Conn().Host)

	policy, err := cfg.Schedule()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, policy.WeekStart)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	root := t.TempDir()
	t.Setenv("OVM_ROOT", root)

	t.Setenv("OVM_PROTOCOL", "ftp")
	_, err := Load(nil)
	require.Error(t, err)

	t.Setenv("OVM_PROTOCOL", "ssh")
	t.Setenv("OVM_WEEK_START", "someday")
	_, err = Load(nil)
	require.Error(t, err)
}

func TestEnsureRoot(t *testing.T) {
	cfg := &Config{Root: filepath.Join(t.TempDir(), "ovm")}
	require.NoError(t, cfg.EnsureRoot())
	assert.DirExists(t, cfg.Layout().Worktrees())
	assert.DirExists(t, cfg.Layout().Virtualenvs())
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.yaml")

	state, err := LoadState(path)
	require.NoError(t, err)
	assert.True(t, state.NextPullCheck.IsZero())

	next := time.Date(2024, 1, 8, 0, 0, 0, 0, time.Local)
	require.NoError(t, SaveState(path, State{NextPullCheck: next.Add(5 * time.Hour)}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-01-08")

	state, err = LoadState(path)
	require.NoError(t, err)
	assert.True(t, next.Equal(state.NextPullCheck))
}
