// Package output holds the layout tokens shared by the renderer and plain
// writers.
package output

import (
	"strings"
	"unicode/utf8"
)

const (
	Indent       = "  "
	StepPrefix   = "•"
	LogConnector = "└─"
)

// LogOutputPrefix aligns command output under the text of a log line.
func LogOutputPrefix() string {
	spaces := utf8.RuneCountInString(LogConnector) + 1
	return Indent + Indent + strings.Repeat(" ", spaces)
}
