package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, level)

	level, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestTraceLinesOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, log.InfoLevel)
	LogStdoutLines(logger, "git:1", "one\ntwo\n")
	assert.Empty(t, buf.String())

	logger.SetLevel(log.DebugLevel)
	LogCommand(logger, "git:1", FormatCommand("git", []string{"status"}))
	LogStdoutLines(logger, "git:1", "one\n\ntwo\n")
	LogExit(logger, "git:1", 0)
	out := buf.String()
	assert.Contains(t, out, "git status")
	assert.Equal(t, 4, strings.Count(out, "trace=git:1"))
}

func TestNewTraceIsUnique(t *testing.T) {
	a := NewTrace("git")
	b := NewTrace("git")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(NewTrace(""), "cmd:"))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "boom", LastLine("first\nboom\n\n  \n"))
	assert.Equal(t, "", LastLine("\n\n"))
}
