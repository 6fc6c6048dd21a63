package worktree

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/infra/logging"
)

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path           string
	Head           string
	Ref            string
	Branch         string
	Detached       bool
	Bare           bool
	Locked         bool
	LockedReason   string
	Prunable       bool
	PrunableReason string
}

// ParsePorcelain parses porcelain output. Attribute lines it does not know are
// logged at debug level and skipped.
func ParsePorcelain(out string, logger *log.Logger) []Worktree {
	logger = logging.Or(logger)
	var worktrees []Worktree
	var current *Worktree
	flush := func() {
		if current != nil && current.Path != "" {
			worktrees = append(worktrees, *current)
		}
		current = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			flush()
			current = &Worktree{Path: value}
			continue
		}
		if current == nil {
			logger.Debug("worktree attribute outside of a record", "line", line)
			continue
		}
		switch key {
		case "HEAD":
			current.Head = value
		case "branch":
			current.Ref = value
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "detached":
			current.Detached = true
		case "bare":
			current.Bare = true
		case "locked":
			current.Locked = true
			current.LockedReason = value
		case "prunable":
			current.Prunable = true
			current.PrunableReason = value
		default:
			logger.Debug("unknown worktree attribute", "line", line)
		}
	}
	flush()
	return worktrees
}
