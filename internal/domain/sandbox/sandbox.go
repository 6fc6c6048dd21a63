// Package sandbox provisions the isolated interpreter environments the target
// application runs in.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/domain/version"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/paths"
	"github.com/tasuku43/ovm/internal/infra/procexec"
)

// legacyPins are installed into sandboxes for releases older than 10.0.
var legacyPins = []string{"psycopg2==2.7.3.1"}

// Spec identifies a sandbox. Identity is the name, not the version.
type Spec struct {
	Name        string
	Path        string
	Interpreter string
}

// Python returns the sandbox interpreter binary.
func (s Spec) Python() string {
	return filepath.Join(s.Path, "bin", "python")
}

// Manager creates and provisions sandboxes below Root.
type Manager struct {
	Root     string
	Runner   procexec.Runner
	Logger   *log.Logger
	LookPath func(file string) (string, error)
	// Platform is matched against sys_platform markers.
	Platform string
}

func NewManager(root string, runner procexec.Runner, logger *log.Logger) *Manager {
	logger = logging.Or(logger)
	if runner == nil {
		runner = procexec.Exec{Logger: logger}
	}
	return &Manager{
		Root:     root,
		Runner:   runner,
		Logger:   logger,
		LookPath: exec.LookPath,
		Platform: runtime.GOOS,
	}
}

// Spec builds the spec for v. An empty name defaults to the version string.
func (m *Manager) Spec(name string, v version.Version) Spec {
	if strings.TrimSpace(name) == "" {
		name = v.String()
	}
	return Spec{
		Name:        name,
		Path:        filepath.Join(m.Root, name),
		Interpreter: InterpreterVersionFor(v),
	}
}

func (m *Manager) Exists(spec Spec) bool {
	ok, err := paths.FileExists(spec.Python())
	return err == nil && ok
}

// Create builds the sandbox when it does not exist yet.
func (m *Manager) Create(ctx context.Context, spec Spec) error {
	if m.Exists(spec) {
		return nil
	}
	interpreter := "python" + spec.Interpreter
	binary, err := m.LookPath(interpreter)
	if err != nil {
		return &EnvironmentPreparationError{
			Sandbox: spec.Name,
			Op:      "create",
			Hint:    fmt.Sprintf("missing interpreter for python %s, please install it using your distribution's package manager", spec.Interpreter),
			Err:     err,
		}
	}
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return &EnvironmentPreparationError{Sandbox: spec.Name, Op: "create", Err: err}
	}
	m.Logger.Info("creating sandbox", "name", spec.Name, "python", spec.Interpreter, "path", spec.Path)
	res, err := m.Runner.Run(ctx, procexec.Command{Name: binary, Args: []string{"-m", "venv", spec.Path}})
	if err != nil {
		return &EnvironmentPreparationError{Sandbox: spec.Name, Op: "create", Err: withDetail(err, res)}
	}
	return nil
}

// InstalledPackages lists installed packages keyed by normalized name.
// Direct references have an empty version.
func (m *Manager) InstalledPackages(ctx context.Context, spec Spec) (map[string]string, error) {
	res, err := m.Runner.Run(ctx, procexec.Command{Name: spec.Python(), Args: []string{"-m", "pip", "freeze", "--all"}})
	if err != nil {
		return nil, withDetail(err, res)
	}
	return parseFreeze(res.Stdout), nil
}

func parseFreeze(out string) map[string]string {
	installed := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-e ") {
			if match := eggPattern.FindStringSubmatch(line); match != nil {
				installed[NormalizeName(match[1])] = ""
			}
			continue
		}
		if name, _, ok := strings.Cut(line, " @ "); ok {
			installed[NormalizeName(name)] = ""
			continue
		}
		if name, ver, ok := strings.Cut(line, "=="); ok {
			installed[NormalizeName(name)] = strings.TrimSpace(ver)
		}
	}
	return installed
}

// RequirementsFile resolves path to a requirements file; a directory means
// its requirements.txt.
func RequirementsFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("no requirements found under %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "requirements.txt")
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("no requirements.txt found under %s: %w", filepath.Dir(path), err)
		}
	}
	return path, nil
}

// MissingRequirements returns the requirement lines of manifestPath that are
// not installed, or installed at a version outside the declared range.
func (m *Manager) MissingRequirements(ctx context.Context, spec Spec, manifestPath string) ([]string, error) {
	file, err := RequirementsFile(manifestPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	installed, err := m.InstalledPackages(ctx, spec)
	if err != nil {
		return nil, err
	}
	m.Logger.Debug("checking requirements", "sandbox", spec.Name, "file", file)

	var missing []string
	for _, req := range ParseRequirements(string(data)) {
		if !req.Applies(spec.Interpreter, m.Platform) {
			continue
		}
		current, ok := installed[req.Name]
		if !ok {
			m.Logger.Debug("missing package", "name", req.Name)
			missing = append(missing, req.Line)
			continue
		}
		if !req.SatisfiedBy(current) {
			m.Logger.Debug("package version mismatch", "name", req.Name, "installed", current, "required", req.Line)
			missing = append(missing, req.Line)
		}
	}
	return missing, nil
}

// InstallRequirements installs a requirements file into the sandbox.
func (m *Manager) InstallRequirements(ctx context.Context, spec Spec, manifestPath string) error {
	file, err := RequirementsFile(manifestPath)
	if err != nil {
		return &EnvironmentPreparationError{Sandbox: spec.Name, Op: "install requirements", Err: err}
	}
	m.Logger.Info("installing requirements", "sandbox", spec.Name, "file", file)
	return m.pipInstall(ctx, spec, "install requirements", "-r", file)
}

// InstallPackages installs the given requirement specifiers.
func (m *Manager) InstallPackages(ctx context.Context, spec Spec, packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	m.Logger.Info("installing packages", "sandbox", spec.Name, "packages", strings.Join(packages, " "))
	return m.pipInstall(ctx, spec, "install packages", packages...)
}

func (m *Manager) pipInstall(ctx context.Context, spec Spec, op string, args ...string) error {
	full := append([]string{"-m", "pip", "install", "--no-color"}, args...)
	res, err := m.Runner.Run(ctx, procexec.Command{Name: spec.Python(), Args: full})
	if err != nil {
		return &EnvironmentPreparationError{Sandbox: spec.Name, Op: op, Err: withDetail(err, res)}
	}
	return nil
}

// Prepare creates the sandbox if needed and installs whatever the given
// requirement files declare but the sandbox lacks.
func (m *Manager) Prepare(ctx context.Context, spec Spec, v version.Version, requirementFiles []string) error {
	if err := m.Create(ctx, spec); err != nil {
		return err
	}
	for _, file := range requirementFiles {
		missing, err := m.MissingRequirements(ctx, spec, file)
		if err != nil {
			return &EnvironmentPreparationError{Sandbox: spec.Name, Op: "check requirements", Err: err}
		}
		if len(missing) == 0 {
			continue
		}
		m.Logger.Info("missing packages", "sandbox", spec.Name, "count", len(missing), "file", file)
		if err := m.InstallRequirements(ctx, spec, file); err != nil {
			return err
		}
	}
	if !v.Master() && v.Major() < 10 {
		installed, err := m.InstalledPackages(ctx, spec)
		if err != nil {
			return &EnvironmentPreparationError{Sandbox: spec.Name, Op: "check packages", Err: err}
		}
		var pins []string
		for _, pin := range legacyPins {
			req, _ := ParseRequirement(pin)
			if current, ok := installed[req.Name]; !ok || !req.SatisfiedBy(current) {
				pins = append(pins, pin)
			}
		}
		if err := m.InstallPackages(ctx, spec, pins); err != nil {
			return err
		}
	}
	return nil
}

type RunOptions struct {
	Dir    string
	Env    []string
	OnLine func(line string)
	// Attach connects the script to the terminal.
	Attach bool
}

// Run executes script with the sandbox interpreter.
func (m *Manager) Run(ctx context.Context, spec Spec, script string, args []string, opts RunOptions) (procexec.Result, error) {
	cmd := procexec.Command{
		Name:   spec.Python(),
		Args:   append([]string{script}, args...),
		Dir:    opts.Dir,
		Env:    opts.Env,
		OnLine: opts.OnLine,
	}
	if opts.Attach && opts.OnLine == nil {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return m.Runner.Run(ctx, cmd)
}

func withDetail(err error, res procexec.Result) error {
	if errors.Is(err, exec.ErrNotFound) {
		return err
	}
	if line := logging.LastLine(res.Stderr); line != "" {
		return fmt.Errorf("%w: %s", err, line)
	}
	return err
}
