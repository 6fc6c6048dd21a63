package process

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LogLine is one structured line of application output.
type LogLine struct {
	Date        string
	Time        string
	PID         string
	Level       string
	Database    string
	Logger      string
	Module      string
	Description string
}

var logLinePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) (\d{2}:\d{2}:\d{2},\d{3}) (\d+) ([A-Z]+) (\S+) ([\w.\-]+): (.*)$`)

const addonsLoggerPrefix = "odoo.addons."

// ParseLogLine matches line against the application log grammar.
func ParseLogLine(line string) (LogLine, bool) {
	match := logLinePattern.FindStringSubmatch(line)
	if match == nil {
		return LogLine{}, false
	}
	parsed := LogLine{
		Date:        match[1],
		Time:        match[2],
		PID:         match[3],
		Level:       match[4],
		Database:    match[5],
		Logger:      match[6],
		Description: match[7],
	}
	if rest, ok := strings.CutPrefix(parsed.Logger, addonsLoggerPrefix); ok {
		parsed.Module, _, _ = strings.Cut(rest, ".")
	}
	return parsed, true
}

var levelStyles = map[string]lipgloss.Style{
	"DEBUG":    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	"INFO":     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	"WARNING":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	"ERROR":    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	"CRITICAL": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

var (
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	moduleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// Formatter recolors application output line by line. Lines that do not
// match the log grammar continue the previous entry and keep its color.
type Formatter struct {
	last string
}

// Format returns the display text for line, plus the parsed entry when the
// line is structured.
func (f *Formatter) Format(line string) (string, LogLine, bool) {
	parsed, ok := ParseLogLine(line)
	if !ok {
		if style, found := levelStyles[f.last]; found && line != "" {
			return style.Render(line), LogLine{}, false
		}
		return line, LogLine{}, false
	}
	f.last = parsed.Level
	level := parsed.Level
	if style, found := levelStyles[level]; found {
		level = style.Render(level)
	}
	source := parsed.Logger
	if parsed.Module != "" {
		source = moduleStyle.Render(parsed.Module)
	}
	text := mutedStyle.Render(parsed.Time) + " " + level + " " + source + ": " + parsed.Description
	return text, parsed, true
}

// Level is the level of the last structured line seen.
func (f *Formatter) Level() string {
	return f.last
}
