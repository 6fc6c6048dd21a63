package process

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	psprocess "github.com/shirou/gopsutil/v4/process"
)

// DefaultPort is the HTTP port the application listens on without -p.
const DefaultPort = 8069

// Entry is one row of the OS process table.
type Entry struct {
	PID     int
	Cmdline []string
}

// Table lists running processes.
type Table interface {
	Processes(ctx context.Context) ([]Entry, error)
}

// SystemTable reads the live OS process table.
type SystemTable struct{}

func (SystemTable) Processes(ctx context.Context) ([]Entry, error) {
	procs, err := psprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(procs))
	for _, p := range procs {
		// Processes may exit or be unreadable between listing and reading.
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(cmdline) == 0 {
			continue
		}
		entries = append(entries, Entry{PID: int(p.Pid), Cmdline: cmdline})
	}
	return entries, nil
}

// Handle is the observed state of a running application process.
type Handle struct {
	PID     int
	Command string
	Port    int
}

// URL is the web client address served by the process.
func (h Handle) URL() string {
	return "http://localhost:" + strconv.Itoa(h.Port) + "/web"
}

var binaryPattern = regexp.MustCompile(`(^|/)(odoo-bin|odoo\.py)$`)

// serves reports whether cmdline runs the application binary against db.
func serves(cmdline []string, db string) bool {
	binary := false
	for i, arg := range cmdline {
		if !binary {
			binary = binaryPattern.MatchString(arg)
			continue
		}
		switch {
		case arg == "-d" || arg == "--database":
			if i+1 < len(cmdline) && cmdline[i+1] == db {
				return true
			}
		case arg == "-d"+db || arg == "--database="+db:
			return true
		}
	}
	return false
}

// portOf extracts the HTTP port from cmdline.
func portOf(cmdline []string) int {
	for i, arg := range cmdline {
		var value string
		switch {
		case arg == "-p" || arg == "--http-port" || arg == "--xmlrpc-port":
			if i+1 < len(cmdline) {
				value = cmdline[i+1]
			}
		case strings.HasPrefix(arg, "--http-port="):
			value = strings.TrimPrefix(arg, "--http-port=")
		case strings.HasPrefix(arg, "-p") && len(arg) > 2:
			value = arg[2:]
		default:
			continue
		}
		if port, err := strconv.Atoi(value); err == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return DefaultPort
}
