package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tasuku43/ovm/internal/infra/output"
)

var ErrPromptCanceled = errors.New("prompt canceled")

type confirmModel struct {
	label    string
	def      bool
	theme    Theme
	useColor bool
	input    textinput.Model
	value    bool
	done     bool
	err      error
}

func newConfirmModel(label string, def bool, theme Theme, useColor bool) confirmModel {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "y/n"
	ti.Focus()
	if useColor {
		ti.PlaceholderStyle = theme.Muted
	}
	return confirmModel{
		label:    label,
		def:      def,
		theme:    theme,
		useColor: useColor,
		input:    ti,
	}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err = ErrPromptCanceled
			return m, tea.Quit
		case tea.KeyEnter:
			switch strings.ToLower(strings.TrimSpace(m.input.Value())) {
			case "":
				m.value = m.def
			case "y", "yes":
				m.value = true
			case "n", "no":
				m.value = false
			default:
				m.input.SetValue("")
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	hint := "(y/N)"
	if m.def {
		hint = "(Y/n)"
	}
	prefix := promptPrefix(m.theme, m.useColor)
	label := promptLabel(m.theme, m.useColor, m.label)
	if m.done {
		answer := "no"
		if m.value {
			answer = "yes"
		}
		return fmt.Sprintf("%s%s %s %s\n", output.Indent, prefix, label, mutedToken(m.theme, m.useColor, answer))
	}
	return fmt.Sprintf("%s%s %s %s: %s\n", output.Indent, prefix, label, mutedToken(m.theme, m.useColor, hint), m.input.View())
}

type multiSelectModel struct {
	label    string
	options  []string
	selected []bool
	cursor   int
	theme    Theme
	useColor bool
	done     bool
	err      error
}

func newMultiSelectModel(label string, options, defaults []string, theme Theme, useColor bool) multiSelectModel {
	chosen := make(map[string]bool, len(defaults))
	for _, d := range defaults {
		chosen[d] = true
	}
	selected := make([]bool, len(options))
	for i, opt := range options {
		selected[i] = chosen[opt]
	}
	return multiSelectModel{
		label:    label,
		options:  options,
		selected: selected,
		theme:    theme,
		useColor: useColor,
	}
}

func (m multiSelectModel) Init() tea.Cmd {
	return nil
}

func (m multiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.err = ErrPromptCanceled
		return m, tea.Quit
	case "enter":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case " ", "x":
		if len(m.options) > 0 {
			m.selected[m.cursor] = !m.selected[m.cursor]
		}
	case "a":
		all := true
		for _, s := range m.selected {
			all = all && s
		}
		for i := range m.selected {
			m.selected[i] = !all
		}
	}
	return m, nil
}

func (m multiSelectModel) View() string {
	var b strings.Builder
	prefix := promptPrefix(m.theme, m.useColor)
	label := promptLabel(m.theme, m.useColor, m.label)
	if m.done {
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", output.Indent, prefix, label, mutedToken(m.theme, m.useColor, fmt.Sprintf("(%d selected)", len(m.values())))))
		return b.String()
	}
	hint := mutedToken(m.theme, m.useColor, "(space: toggle, a: all, enter: confirm)")
	b.WriteString(fmt.Sprintf("%s%s %s %s\n", output.Indent, prefix, label, hint))
	for i, opt := range m.options {
		box := "[ ]"
		if m.selected[i] {
			box = "[x]"
		}
		line := box + " " + opt
		if i == m.cursor && m.useColor {
			line = lipgloss.NewStyle().Bold(true).Render(line)
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", output.Indent+output.Indent, mutedToken(m.theme, m.useColor, output.LogConnector), line))
	}
	return b.String()
}

func (m multiSelectModel) values() []string {
	var out []string
	for i, opt := range m.options {
		if m.selected[i] {
			out = append(out, opt)
		}
	}
	return out
}

func promptPrefix(theme Theme, useColor bool) string {
	if useColor {
		return theme.Accent.Render(output.StepPrefix)
	}
	return output.StepPrefix
}

func promptLabel(theme Theme, useColor bool, label string) string {
	if useColor {
		return theme.Accent.Render(label)
	}
	return label
}

func mutedToken(theme Theme, useColor bool, token string) string {
	if useColor {
		return theme.Muted.Render(token)
	}
	return token
}
