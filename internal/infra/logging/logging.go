// Package logging owns the process-wide leveled logger and the command trace
// helpers used by every external tool invocation.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	current  atomic.Pointer[log.Logger]
	traceSeq uint64
)

func init() {
	current.Store(New(os.Stderr, log.InfoLevel))
}

// New returns a logger writing to w at the given level.
func New(w io.Writer, level log.Level) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "ovm",
		Level:  level,
	})
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(value string) (log.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(value)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("unknown log level %q", value)
	}
	return level, nil
}

func SetDefault(logger *log.Logger) {
	if logger == nil {
		return
	}
	current.Store(logger)
}

func Default() *log.Logger {
	return current.Load()
}

// Or returns logger, or the default logger when nil.
func Or(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return Default()
}

func NewTrace(prefix string) string {
	value := atomic.AddUint64(&traceSeq, 1)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cmd"
	}
	return fmt.Sprintf("%s:%x", prefix, value)
}

func FormatCommand(name string, args []string) string {
	if len(args) == 0 {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func LogCommand(logger *log.Logger, trace, cmd string) {
	Or(logger).Debug("exec", "trace", trace, "cmd", cmd)
}

func LogStdoutLines(logger *log.Logger, trace, text string) {
	logOutputLines(Or(logger), trace, "stdout", text)
}

func LogStderrLines(logger *log.Logger, trace, text string) {
	logOutputLines(Or(logger), trace, "stderr", text)
}

func LogExit(logger *log.Logger, trace string, code int) {
	Or(logger).Debug("exit", "trace", trace, "code", code)
}

func logOutputLines(logger *log.Logger, trace, kind, text string) {
	if logger.GetLevel() > log.DebugLevel || strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range SplitLines(text) {
		logger.Debug(kind, "trace", trace, "line", line)
	}
}

// SplitLines splits text on newlines and drops blank lines.
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// LastLine returns the last non-blank line of text.
func LastLine(text string) string {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
