// Package process discovers, runs and stops the application process serving
// a database.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/domain/addons"
	"github.com/tasuku43/ovm/internal/domain/database"
	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/sandbox"
	"github.com/tasuku43/ovm/internal/domain/version"
	"github.com/tasuku43/ovm/internal/domain/worktree"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/paths"
	"github.com/tasuku43/ovm/internal/infra/procexec"
	"github.com/tasuku43/ovm/internal/infra/sigcapture"
	"golang.org/x/sys/unix"
)

var ErrAlreadyRunning = errors.New("already running")

// DefaultTTL bounds how long a discovered handle is reused.
const DefaultTTL = 3 * time.Second

var (
	CommunityRepositories  = []string{"odoo/odoo", "odoo/design-themes"}
	EnterpriseRepositories = []string{"odoo/enterprise"}
)

type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusFailed {
		return "failed"
	}
	return "succeeded"
}

// Result describes a finished application run.
type Result struct {
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
	// Args is the argument vector passed to the application binary.
	Args []string
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Table     Table
	Signaler  Signaler
	Repos     *repo.Manager
	Worktrees *worktree.Manager
	Sandboxes *sandbox.Manager
	Addons    *addons.Resolver
	Logger    *log.Logger
	// Out receives formatted application output when streaming.
	Out io.Writer
}

// Options are the caller's overrides. Zero values mean "derive it".
type Options struct {
	Version    string
	Enterprise bool
	Sandbox    string
	Worktree   string
	Addons     []string
	LogLevel   string
}

// RunOptions configure one application run.
type RunOptions struct {
	Args       []string
	Subcommand string
	// Stream formats output line by line as it arrives. Otherwise output is
	// captured and returned in the Result.
	Stream   bool
	Progress func(LogLine)
	// BeforePrepare runs before any worktree is touched, and only when no
	// process serves the database.
	BeforePrepare func(ctx context.Context, repos []repo.Repository)
}

// Controller manages the application process of one database.
type Controller struct {
	db   database.Database
	deps Deps
	opts Options

	// TTL bounds reuse of the discovered handle.
	TTL time.Duration
	Now func() time.Time
	// Community and Enterprise list the source repositories per edition.
	Community  []string
	Enterprise []string

	mu         sync.Mutex
	handle     *Handle
	observedAt time.Time

	killed map[killKey]bool

	version      *version.Version
	repositories []repo.Repository
	worktrees    []worktree.Worktree
	addonsPaths  []string
}

type killKey struct {
	pid int
	sig unix.Signal
}

func New(db database.Database, deps Deps, opts Options) *Controller {
	deps.Logger = logging.Or(deps.Logger)
	if deps.Table == nil {
		deps.Table = SystemTable{}
	}
	if deps.Signaler == nil {
		deps.Signaler = UnixSignaler{}
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	return &Controller{
		db:         db,
		deps:       deps,
		opts:       opts,
		TTL:        DefaultTTL,
		Now:        time.Now,
		Community:  CommunityRepositories,
		Enterprise: EnterpriseRepositories,
		killed:     make(map[killKey]bool),
	}
}

func (c *Controller) Database() database.Database { return c.db }

// Discover looks for the process serving the database. Errors reading the
// process table count as "not running".
func (c *Controller) Discover(ctx context.Context) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.observedAt.IsZero() && c.Now().Sub(c.observedAt) < c.TTL {
		if c.handle == nil {
			return Handle{}, false
		}
		return *c.handle, true
	}

	c.handle = nil
	c.observedAt = c.Now()
	entries, err := c.deps.Table.Processes(ctx)
	if err != nil {
		c.deps.Logger.Debug("could not read the process table", "err", err)
		return Handle{}, false
	}
	for _, entry := range entries {
		if !serves(entry.Cmdline, c.db.Name()) {
			continue
		}
		c.handle = &Handle{
			PID:     entry.PID,
			Command: strings.Join(entry.Cmdline, " "),
			Port:    portOf(entry.Cmdline),
		}
		c.deps.Logger.Debug("found running process", "database", c.db.Name(), "pid", entry.PID, "port", c.handle.Port)
		return *c.handle, true
	}
	return Handle{}, false
}

func (c *Controller) IsRunning(ctx context.Context) bool {
	_, ok := c.Discover(ctx)
	return ok
}

// Handle returns the last discovered handle, discovering it when needed.
func (c *Controller) Handle(ctx context.Context) (Handle, bool) {
	return c.Discover(ctx)
}

// Forget drops the cached handle so the next query rescans.
func (c *Controller) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = nil
	c.observedAt = time.Time{}
}

// Kill interrupts the running process, or kills it when hard is set. It does
// nothing when no process runs, and repeated calls with the same signal on
// the same process have no further effect.
func (c *Controller) Kill(ctx context.Context, hard bool) error {
	handle, ok := c.Discover(ctx)
	if !ok {
		return nil
	}
	sig := unix.SIGINT
	if hard {
		sig = unix.SIGKILL
	}
	key := killKey{pid: handle.PID, sig: sig}
	c.mu.Lock()
	if c.killed[key] {
		c.mu.Unlock()
		return nil
	}
	c.killed[key] = true
	c.mu.Unlock()

	c.deps.Logger.Info("stopping process", "database", c.db.Name(), "pid", handle.PID, "signal", unix.SignalName(sig))
	if err := c.deps.Signaler.Signal(handle.PID, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			c.Forget()
			return nil
		}
		return fmt.Errorf("kill %d: %w", handle.PID, err)
	}
	return nil
}

// Version resolves the version to run: the explicit one, else the one
// installed in the database, else master.
func (c *Controller) Version(ctx context.Context) (version.Version, error) {
	if c.version != nil {
		return *c.version, nil
	}
	var v version.Version
	switch {
	case c.opts.Version != "":
		parsed, err := version.Parse(c.opts.Version)
		if err != nil {
			return version.Version{}, err
		}
		v = parsed
	default:
		installed, ok, err := c.db.Version(ctx)
		if err != nil {
			c.deps.Logger.Debug("could not read database version", "database", c.db.Name(), "err", err)
		}
		if ok {
			v = installed
		} else {
			c.deps.Logger.Warn("no version found for database, using master", "database", c.db.Name())
			v = version.Master
		}
	}
	c.version = &v
	return v, nil
}

// Edition is enterprise when requested explicitly or installed.
func (c *Controller) Edition(ctx context.Context) database.Edition {
	if c.opts.Enterprise {
		return database.EditionEnterprise
	}
	edition, err := c.db.Edition(ctx)
	if err != nil {
		c.deps.Logger.Debug("could not read database edition", "database", c.db.Name(), "err", err)
		return database.EditionCommunity
	}
	return edition
}

// Repositories returns the source repositories for the database edition.
// The enterprise repository comes right after the core one.
func (c *Controller) Repositories(ctx context.Context) ([]repo.Repository, error) {
	if c.repositories != nil {
		return c.repositories, nil
	}
	specs := slices.Clone(c.Community)
	if c.Edition(ctx) == database.EditionEnterprise {
		specs = slices.Insert(specs, min(1, len(specs)), c.Enterprise...)
	}
	out := make([]repo.Repository, 0, len(specs))
	for _, spec := range specs {
		r, err := c.deps.Repos.Resolve(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	c.repositories = out
	return out, nil
}

// Sandbox returns the sandbox the database runs in.
func (c *Controller) Sandbox(ctx context.Context) (sandbox.Spec, error) {
	v, err := c.Version(ctx)
	if err != nil {
		return sandbox.Spec{}, err
	}
	return c.deps.Sandboxes.Spec(c.opts.Sandbox, v), nil
}

// WorktreeName returns the name of the worktree set, the version by default.
func (c *Controller) WorktreeName(ctx context.Context) (string, error) {
	if c.opts.Worktree != "" {
		return c.opts.Worktree, nil
	}
	v, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// AddonsPaths returns the addons paths resolved by the last preparation.
func (c *Controller) AddonsPaths() []string {
	return slices.Clone(c.addonsPaths)
}

// Worktrees returns the worktrees ensured by the last preparation.
func (c *Controller) Worktrees() []worktree.Worktree {
	return slices.Clone(c.worktrees)
}

// Prepare makes the checkouts, the sandbox and the addons paths ready, in
// that order.
func (c *Controller) Prepare(ctx context.Context) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	repos, err := c.Repositories(ctx)
	if err != nil {
		return err
	}
	name, err := c.WorktreeName(ctx)
	if err != nil {
		return err
	}
	worktrees, err := c.deps.Worktrees.EnsureAll(ctx, repos, name, v.Branch())
	if err != nil {
		return err
	}
	c.worktrees = worktrees
	roots := make([]string, 0, len(worktrees))
	for _, wt := range worktrees {
		roots = append(roots, wt.Path)
	}

	spec, err := c.Sandbox(ctx)
	if err != nil {
		return err
	}
	if err := c.deps.Sandboxes.Prepare(ctx, spec, v, addons.RequirementFiles(roots, c.opts.Addons)); err != nil {
		return err
	}

	c.addonsPaths = c.deps.Addons.Resolve(ctx, roots, c.opts.Addons)
	c.deps.Logger.Debug("resolved addons paths", "database", c.db.Name(), "paths", strings.Join(c.addonsPaths, ","))
	return nil
}

// Coexists reports whether subcommand may run next to a serving process.
func Coexists(subcommand string) bool {
	return subcommand != "" && subcommand != "server"
}

// BuildArgs assembles the application arguments in their fixed order.
func BuildArgs(subcommand, db string, addonsPaths []string, logLevel string, extra []string) []string {
	args := make([]string, 0, len(extra)+7)
	if subcommand != "" {
		args = append(args, subcommand)
	}
	args = append(args, "-d", db)
	args = append(args, "--addons-path", strings.Join(addonsPaths, ","))
	args = append(args, "--log-level", strings.ToLower(logLevel))
	return append(args, extra...)
}

// MaskPasswords replaces the values of password flags for display.
func MaskPasswords(args []string) []string {
	out := slices.Clone(args)
	for i := 0; i < len(out); i++ {
		flag, value, inline := strings.Cut(out[i], "=")
		if !isPasswordFlag(flag) {
			continue
		}
		if inline {
			if value != "" {
				out[i] = flag + "=" + strings.Repeat("*", 8)
			}
			continue
		}
		if i+1 < len(out) && !strings.HasPrefix(out[i+1], "-") {
			out[i+1] = strings.Repeat("*", 8)
			i++
		}
	}
	return out
}

func isPasswordFlag(flag string) bool {
	if !strings.HasPrefix(flag, "-") {
		return false
	}
	if flag == "-w" {
		return true
	}
	name := strings.ToLower(strings.TrimLeft(flag, "-"))
	return strings.Contains(name, "passw") || strings.Contains(name, "secret")
}

// Script returns the application entry point inside the core worktree.
func (c *Controller) Script() (string, error) {
	if len(c.worktrees) == 0 {
		return "", fmt.Errorf("no worktree prepared for %s", c.db.Name())
	}
	core := c.worktrees[0].Path
	for _, name := range []string{"odoo-bin", "odoo.py"} {
		if ok, _ := paths.FileExists(filepath.Join(core, name)); ok {
			return filepath.Join(core, name), nil
		}
	}
	return filepath.Join(core, "odoo-bin"), nil
}

// Run prepares the environment and runs the application against the
// database. A child that exits nonzero or dies from a signal is reported as
// StatusFailed, not as an error; only a child that never started is an error.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (Result, error) {
	serving := c.IsRunning(ctx)
	if serving && !Coexists(opts.Subcommand) {
		return Result{}, fmt.Errorf("%w: database %s", ErrAlreadyRunning, c.db.Name())
	}
	if opts.BeforePrepare != nil && !serving {
		repos, err := c.Repositories(ctx)
		if err != nil {
			return Result{}, err
		}
		opts.BeforePrepare(ctx, repos)
	}
	if err := c.Prepare(ctx); err != nil {
		return Result{}, err
	}
	v, _ := c.Version(ctx)
	spec, err := c.Sandbox(ctx)
	if err != nil {
		return Result{}, err
	}
	script, err := c.Script()
	if err != nil {
		return Result{}, err
	}
	args := BuildArgs(opts.Subcommand, c.db.Name(), c.addonsPaths, c.opts.LogLevel, opts.Args)
	display := append([]string{spec.Python(), script}, MaskPasswords(args)...)
	c.deps.Logger.Info("running", "database", c.db.Name(), "version", v.String(), "command", strings.Join(display, " "))

	runOpts := sandbox.RunOptions{Dir: filepath.Dir(script)}
	if opts.Stream {
		if location, found := FindDebugger(c.addonsPaths); found {
			c.deps.Logger.Warn("addons contain a debugger call, output formatting is disabled", "location", location)
			runOpts.Attach = true
		} else {
			runOpts.OnLine = c.lineHandler(opts.Progress)
		}
	}

	var res procexec.Result
	var runErr error
	onSignal := func(sig os.Signal) {
		c.deps.Logger.Warn("signal received, waiting for the process to stop", "signal", sig)
	}
	_ = sigcapture.Run(sigcapture.DefaultSignals, onSignal, func() error {
		res, runErr = c.deps.Sandboxes.Run(ctx, spec, script, args, runOpts)
		return runErr
	})
	c.Forget()

	result := Result{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr, Args: args}
	if runErr != nil {
		if !res.Started {
			return Result{}, runErr
		}
		result.Status = StatusFailed
		c.deps.Logger.Error("process exited with an error", "database", c.db.Name(), "code", res.ExitCode, "detail", lastMeaningfulLine(res.Stderr))
		return result, nil
	}
	return result, nil
}

func (c *Controller) lineHandler(progress func(LogLine)) func(string) {
	formatter := &Formatter{}
	var mu sync.Mutex
	return func(line string) {
		mu.Lock()
		defer mu.Unlock()
		text, parsed, ok := formatter.Format(line)
		fmt.Fprintln(c.deps.Out, text)
		if ok && progress != nil {
			progress(parsed)
		}
	}
}

// lastMeaningfulLine returns the last non-empty stderr line without the
// "ERROR: " prefix and trailing period.
func lastMeaningfulLine(stderr string) string {
	line := logging.LastLine(stderr)
	line = strings.TrimPrefix(line, "ERROR: ")
	return strings.TrimRight(line, ".")
}

// Probe reports running processes by database name.
type Probe struct {
	Table  Table
	Logger *log.Logger
}

func (p Probe) Running(ctx context.Context, db string) bool {
	table := p.Table
	if table == nil {
		table = SystemTable{}
	}
	entries, err := table.Processes(ctx)
	if err != nil {
		logging.Or(p.Logger).Debug("could not read the process table", "err", err)
		return false
	}
	for _, entry := range entries {
		if serves(entry.Cmdline, db) {
			return true
		}
	}
	return false
}
