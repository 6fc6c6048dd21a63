package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasuku43/ovm/internal/domain/version"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/procexec"
)

type fakeRunner struct {
	calls   []procexec.Command
	freeze  string
	failPip string
}

func (f *fakeRunner) Run(ctx context.Context, cmd procexec.Command) (procexec.Result, error) {
	f.calls = append(f.calls, cmd)
	joined := strings.Join(cmd.Args, " ")
	switch {
	case strings.Contains(joined, "pip freeze"):
		return procexec.Result{Stdout: f.freeze}, nil
	case strings.Contains(joined, "pip install") && f.failPip != "":
		return procexec.Result{Stderr: "Collecting x\n" + f.failPip + "\n", ExitCode: 1}, fmt.Errorf("pip failed: exit status 1")
	}
	return procexec.Result{}, nil
}

func (f *fakeRunner) commands() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func newTestManager(t *testing.T, runner *fakeRunner) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), runner, logging.Discard())
	m.Platform = "linux"
	m.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	return m
}

func TestInterpreterVersionFor(t *testing.T) {
	cases := map[string]string{
		"8.0":       "2.7",
		"10.0":      "2.7",
		"11.0":      "3.7",
		"13.0":      "3.7",
		"14.0":      "3.8",
		"15.0":      "3.8",
		"16.0":      "3.10",
		"saas~17.2": "3.10",
		"18.0":      "3.12",
		"19.0":      "3.12",
		"master":    "3.12",
	}
	for input, want := range cases {
		assert.Equal(t, want, InterpreterVersionFor(version.MustParse(input)), input)
	}
}

func TestSpecDefaultsNameToVersion(t *testing.T) {
	m := newTestManager(t, &fakeRunner{})
	spec := m.Spec("", version.MustParse("saas~16.4"))
	assert.Equal(t, "saas-16.4", spec.Name)
	assert.Equal(t, filepath.Join(m.Root, "saas-16.4"), spec.Path)
	assert.Equal(t, "3.10", spec.Interpreter)

	custom := m.Spec("experiment", version.MustParse("17.0"))
	assert.Equal(t, "experiment", custom.Name)
	assert.Equal(t, filepath.Join(m.Root, "experiment", "bin", "python"), custom.Python())
}

func TestCreate(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestManager(t, runner)
	spec := m.Spec("", version.MustParse("17.0"))

	require.NoError(t, m.Create(context.Background(), spec))
	assert.Equal(t, []string{"/usr/bin/python3.10 -m venv " + spec.Path}, runner.commands())

	require.NoError(t, os.MkdirAll(filepath.Dir(spec.Python()), 0o755))
	require.NoError(t, os.WriteFile(spec.Python(), []byte(""), 0o755))
	require.NoError(t, m.Create(context.Background(), spec))
	assert.Len(t, runner.calls, 1)
}

func TestCreateMissingInterpreter(t *testing.T) {
	m := newTestManager(t, &fakeRunner{})
	m.LookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := m.Create(context.Background(), m.Spec("", version.MustParse("14.0")))
	var prepErr *EnvironmentPreparationError
	require.ErrorAs(t, err, &prepErr)
	assert.Contains(t, prepErr.Error(), "python 3.8")
}

func TestParseFreeze(t *testing.T) {
	out := "Babel==2.9.1\npsycopg2-binary==2.9.5\nodoo-addon @ file:///tmp/odoo_addon\n-e git+https://github.com/x/y.git@abc#egg=Some_Tool\npip==23.0\n"
	got := parseFreeze(out)
	assert.Equal(t, map[string]string{
		"babel":           "2.9.1",
		"psycopg2-binary": "2.9.5",
		"odoo-addon":      "",
		"some-tool":       "",
		"pip":             "23.0",
	}, got)
}

func TestMissingRequirements(t *testing.T) {
	runner := &fakeRunner{freeze: "Babel==2.9.1\nlxml==4.6.5\ngevent==21.8.0\nrequests==2.25.1\n"}
	m := newTestManager(t, runner)
	spec := m.Spec("", version.MustParse("16.0"))

	dir := t.TempDir()
	reqs := `# comment
Babel==2.9.1
lxml==4.9.2 ; python_version > '3.10'
lxml==4.8.0 ; python_version <= '3.10'
gevent==21.8.0 ; sys_platform != 'win32'
pywin32 ; sys_platform == 'win32'
requests>=2.25,<3
PyPDF2==1.26.0
--extra-index-url https://example.com/simple
zeep @ git+https://github.com/mvantellingen/python-zeep.git
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(reqs), 0o644))

	missing, err := m.MissingRequirements(context.Background(), spec, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"lxml==4.8.0 ; python_version <= '3.10'",
		"PyPDF2==1.26.0",
		"zeep @ git+https://github.com/mvantellingen/python-zeep.git",
	}, missing)

	_, err = m.MissingRequirements(context.Background(), spec, filepath.Join(dir, "nope"))
	require.Error(t, err)
}

func TestMissingRequirementsAcceptsPostReleases(t *testing.T) {
	runner := &fakeRunner{freeze: "requests==2.0.post1\nBabel==2.9.0rc1\n"}
	m := newTestManager(t, runner)
	spec := m.Spec("", version.MustParse("17.0"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests>=2.0\nBabel>=2.9.0\n"), 0o644))

	missing, err := m.MissingRequirements(context.Background(), spec, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Babel>=2.9.0"}, missing)
}

func TestInstallFailureReportsInstallerLine(t *testing.T) {
	runner := &fakeRunner{failPip: "ERROR: No matching distribution found for nope"}
	m := newTestManager(t, runner)
	spec := m.Spec("", version.MustParse("17.0"))

	err := m.InstallPackages(context.Background(), spec, []string{"nope"})
	var prepErr *EnvironmentPreparationError
	require.ErrorAs(t, err, &prepErr)
	assert.Contains(t, err.Error(), "No matching distribution found for nope")
	assert.NoError(t, m.InstallPackages(context.Background(), spec, nil))
}

func TestPrepareLegacyPin(t *testing.T) {
	runner := &fakeRunner{freeze: "Babel==2.9.1\n"}
	m := newTestManager(t, runner)
	v := version.MustParse("8.0")
	spec := m.Spec("", v)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("Babel==2.9.1\n"), 0o644))

	require.NoError(t, m.Prepare(context.Background(), spec, v, []string{dir}))
	cmds := runner.commands()
	assert.Equal(t, "/usr/bin/python2.7 -m venv "+spec.Path, cmds[0])
	assert.Equal(t, spec.Python()+" -m pip install --no-color psycopg2==2.7.3.1", cmds[len(cmds)-1])
	for _, c := range cmds {
		assert.NotContains(t, c, "-r ")
	}
}

func TestRunStreamsScript(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestManager(t, runner)
	spec := m.Spec("", version.MustParse("17.0"))
	_, err := m.Run(context.Background(), spec, "/src/odoo-bin", []string{"-d", "db"}, RunOptions{OnLine: func(string) {}})
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, spec.Python()+" /src/odoo-bin -d db", runner.calls[0].String())
	assert.NotNil(t, runner.calls[0].OnLine)
	assert.Nil(t, runner.calls[0].Stdout)
}
