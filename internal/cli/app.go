package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tasuku43/ovm/internal/config"
	"github.com/tasuku43/ovm/internal/domain/addons"
	"github.com/tasuku43/ovm/internal/domain/database"
	"github.com/tasuku43/ovm/internal/domain/process"
	"github.com/tasuku43/ovm/internal/domain/repo"
	"github.com/tasuku43/ovm/internal/domain/sandbox"
	"github.com/tasuku43/ovm/internal/domain/worktree"
	"github.com/tasuku43/ovm/internal/infra/logging"
	"github.com/tasuku43/ovm/internal/infra/store"
	"github.com/tasuku43/ovm/internal/ui"
	"golang.org/x/sys/unix"
)

var now = time.Now

// app holds what a command needs, built from the loaded configuration.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	out       io.Writer
	renderer  *ui.Renderer
	repos     *repo.Manager
	worktrees *worktree.Manager
	sandboxes *sandbox.Manager
	resolver  *addons.Resolver
	store     *store.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), level)
	logging.SetDefault(logger)
	if cfg.File != "" {
		logger.Debug("using config file", "path", cfg.File)
	}

	if err := cfg.EnsureRoot(); err != nil {
		return nil, err
	}
	policy, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	useColor := isTerminal(out)
	if useColor {
		ui.SetWrapWidth(terminalWidth(out))
	}

	layout := cfg.Layout()
	repos := repo.NewManager(layout.Repositories(), cfg.Protocol, logger)
	worktrees := worktree.NewManager(layout.Worktrees(), repos, ui.NewPrompter(answerFlag(cmd), logger), logger)
	worktrees.Policy = policy

	st, err := store.Open(layout.StoreFile())
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		renderer:  ui.NewRenderer(out, ui.DefaultTheme(), useColor),
		repos:     repos,
		worktrees: worktrees,
		sandboxes: sandbox.NewManager(layout.Virtualenvs(), nil, logger),
		resolver:  addons.NewResolver(logger),
		store:     st,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// database opens the local database name. The connection is made lazily.
func (a *app) database(name string) *database.LocalDatabase {
	probe := process.Probe{Logger: a.logger}
	return database.NewLocal(name, database.PgxConnector(a.cfg.Postgres.Conn()), probe, a.logger)
}

func (a *app) controller(db database.Database, opts process.Options) *process.Controller {
	if opts.LogLevel == "" {
		opts.LogLevel = a.cfg.AppLogLevel
	}
	return process.New(db, process.Deps{
		Repos:     a.repos,
		Worktrees: a.worktrees,
		Sandboxes: a.sandboxes,
		Addons:    a.resolver,
		Logger:    a.logger,
		Out:       a.out,
	}, opts)
}

// knownRepositories lists every source repository ovm may manage, in order.
func (a *app) knownRepositories() ([]repo.Repository, error) {
	specs := append([]string{}, process.CommunityRepositories[:1]...)
	specs = append(specs, process.EnterpriseRepositories...)
	specs = append(specs, process.CommunityRepositories[1:]...)
	out := make([]repo.Repository, 0, len(specs))
	for _, spec := range specs {
		r, err := a.repos.Resolve(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// cloned filters repos down to those with a shared clone on disk.
func (a *app) cloned(repos []repo.Repository) []repo.Repository {
	var out []repo.Repository
	for _, r := range repos {
		if a.repos.Exists(r) {
			out = append(out, r)
		}
	}
	return out
}

// scheduledPull runs the weekly pull check for repos and records when the
// next one is due. Failures are logged, never returned.
func (a *app) scheduledPull(ctx context.Context, repos []repo.Repository) {
	statePath := a.cfg.Layout().StateFile()
	state, err := config.LoadState(statePath)
	if err != nil {
		a.logger.Warn("could not read state, skipping scheduled pull", "err", err)
		return
	}
	next, err := a.worktrees.ScheduledPull(ctx, a.cloned(repos), state.NextPullCheck, now())
	if err != nil {
		a.logger.Warn("scheduled pull failed", "err", err)
	}
	if next.Equal(state.NextPullCheck) {
		return
	}
	state.NextPullCheck = next
	if err := config.SaveState(statePath, state); err != nil {
		a.logger.Warn("could not save state", "err", err)
	}
}

func answerFlag(cmd *cobra.Command) ui.Answer {
	flags := cmd.Root().PersistentFlags()
	if yes, _ := flags.GetBool("yes"); yes {
		return ui.AnswerYes
	}
	if no, _ := flags.GetBool("no"); no {
		return ui.AnswerNo
	}
	return ui.AnswerDefault
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	size, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(size.Col)
}

func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}
}
