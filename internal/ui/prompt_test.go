package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func TestConfirmModel(t *testing.T) {
	cases := []struct {
		name  string
		def   bool
		keys  []tea.KeyMsg
		want  bool
		done  bool
		isErr bool
	}{
		{name: "empty takes default yes", def: true, keys: []tea.KeyMsg{enter}, want: true, done: true},
		{name: "empty takes default no", def: false, keys: []tea.KeyMsg{enter}, want: false, done: true},
		{name: "explicit yes", keys: []tea.KeyMsg{runes("y"), enter}, want: true, done: true},
		{name: "explicit no", def: true, keys: []tea.KeyMsg{runes("no"), enter}, want: false, done: true},
		{name: "garbage is asked again", keys: []tea.KeyMsg{runes("maybe"), enter}, done: false},
		{name: "escape cancels", keys: []tea.KeyMsg{{Type: tea.KeyEsc}}, isErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := press(newConfirmModel("continue?", tc.def, DefaultTheme(), false), tc.keys...).(confirmModel)
			if tc.isErr {
				assert.True(t, errors.Is(m.err, ErrPromptCanceled))
				return
			}
			require.NoError(t, m.err)
			assert.Equal(t, tc.done, m.done)
			if tc.done {
				assert.Equal(t, tc.want, m.value)
			}
		})
	}
}

func TestConfirmViewShowsDefault(t *testing.T) {
	assert.Contains(t, newConfirmModel("pull now?", true, DefaultTheme(), false).View(), "(Y/n)")
	assert.Contains(t, newConfirmModel("pull now?", false, DefaultTheme(), false).View(), "(y/N)")
}

func TestMultiSelectModel(t *testing.T) {
	options := []string{"odoo", "enterprise", "design-themes"}

	m := press(newMultiSelectModel("pull", options, []string{"enterprise"}, DefaultTheme(), false), enter).(multiSelectModel)
	assert.Equal(t, []string{"enterprise"}, m.values())

	m = press(newMultiSelectModel("pull", options, nil, DefaultTheme(), false), space, down, down, space, enter).(multiSelectModel)
	assert.True(t, m.done)
	assert.Equal(t, []string{"odoo", "design-themes"}, m.values())

	m = press(newMultiSelectModel("pull", options, []string{"odoo"}, DefaultTheme(), false), runes("a")).(multiSelectModel)
	assert.Equal(t, options, m.values())
	m = press(m, runes("a")).(multiSelectModel)
	assert.Empty(t, m.values())

	m = press(newMultiSelectModel("pull", options, nil, DefaultTheme(), false), tea.KeyMsg{Type: tea.KeyCtrlC}).(multiSelectModel)
	assert.ErrorIs(t, m.err, ErrPromptCanceled)
}

func TestMultiSelectView(t *testing.T) {
	m := newMultiSelectModel("pull outdated worktrees", []string{"a", "b"}, []string{"b"}, DefaultTheme(), false)
	view := m.View()
	assert.Contains(t, view, "[ ] a")
	assert.Contains(t, view, "[x] b")
}

func TestStaticPrompter(t *testing.T) {
	options := []string{"a", "b"}

	ok, err := StaticPrompter{}.Confirm("q", true)
	require.NoError(t, err)
	assert.True(t, ok)
	values, err := StaticPrompter{}.MultiSelect("q", options, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, values)

	ok, _ = StaticPrompter{Answer: AnswerNo}.Confirm("q", true)
	assert.False(t, ok)
	values, _ = StaticPrompter{Answer: AnswerNo}.MultiSelect("q", options, options)
	assert.Empty(t, values)

	ok, _ = StaticPrompter{Answer: AnswerYes}.Confirm("q", false)
	assert.True(t, ok)
	values, _ = StaticPrompter{Answer: AnswerYes}.MultiSelect("q", options, nil)
	assert.Equal(t, options, values)
}

func TestRendererWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, DefaultTheme(), false)
	r.Step("preparing worktrees")
	r.Log("odoo/odoo at 17.0")
	r.Field("port", "8069", 4)
	r.BulletError("error: boom")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  • preparing worktrees", lines[0])
	assert.Equal(t, "    └─ odoo/odoo at 17.0", lines[1])
	assert.Equal(t, "  • port: 8069", lines[2])
	assert.Equal(t, "  • error: boom", lines[3])
}
