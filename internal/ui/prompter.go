package ui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/tasuku43/ovm/internal/infra/logging"
)

// Answer is the preset reply of a non-interactive prompter.
type Answer int

const (
	// AnswerDefault accepts each prompt's default.
	AnswerDefault Answer = iota
	AnswerYes
	AnswerNo
)

// TerminalPrompter asks on the terminal with bubbletea programs.
type TerminalPrompter struct {
	Theme    Theme
	UseColor bool
	In       io.Reader
	Out      io.Writer
	Logger   *log.Logger
}

func (p *TerminalPrompter) Confirm(message string, def bool) (bool, error) {
	out, err := p.run(newConfirmModel(message, def, p.Theme, p.UseColor))
	if err != nil {
		return false, err
	}
	final := out.(confirmModel)
	if final.err != nil {
		return false, final.err
	}
	p.logger().Debug("prompt answered", "prompt", message, "answer", final.value)
	return final.value, nil
}

func (p *TerminalPrompter) MultiSelect(message string, options, defaults []string) ([]string, error) {
	if len(options) == 0 {
		return nil, nil
	}
	out, err := p.run(newMultiSelectModel(message, options, defaults, p.Theme, p.UseColor))
	if err != nil {
		return nil, err
	}
	final := out.(multiSelectModel)
	if final.err != nil {
		return nil, final.err
	}
	values := final.values()
	p.logger().Debug("prompt answered", "prompt", message, "selected", len(values))
	return values, nil
}

func (p *TerminalPrompter) run(model tea.Model) (tea.Model, error) {
	var opts []tea.ProgramOption
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	return tea.NewProgram(model, opts...).Run()
}

func (p *TerminalPrompter) logger() *log.Logger {
	return logging.Or(p.Logger)
}

// StaticPrompter answers every prompt without asking.
type StaticPrompter struct {
	Answer Answer
	Logger *log.Logger
}

func (p StaticPrompter) Confirm(message string, def bool) (bool, error) {
	value := def
	switch p.Answer {
	case AnswerYes:
		value = true
	case AnswerNo:
		value = false
	}
	logging.Or(p.Logger).Debug("prompt answered without asking", "prompt", message, "answer", value)
	return value, nil
}

func (p StaticPrompter) MultiSelect(message string, options, defaults []string) ([]string, error) {
	var values []string
	switch p.Answer {
	case AnswerYes:
		values = append(values, options...)
	case AnswerNo:
	default:
		values = append(values, defaults...)
	}
	logging.Or(p.Logger).Debug("prompt answered without asking", "prompt", message, "selected", len(values))
	return values, nil
}

// Prompter is what the worktree manager asks through.
type Prompter interface {
	Confirm(message string, def bool) (bool, error)
	MultiSelect(message string, options, defaults []string) ([]string, error)
}

// NewPrompter returns a terminal prompter when answer is AnswerDefault and
// both stdin and stdout are terminals, a StaticPrompter otherwise.
func NewPrompter(answer Answer, logger *log.Logger) Prompter {
	if answer == AnswerDefault && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
		return &TerminalPrompter{Theme: DefaultTheme(), UseColor: true, Logger: logger}
	}
	return StaticPrompter{Answer: answer, Logger: logger}
}
