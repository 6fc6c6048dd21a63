// Package procexec runs external programs either captured, streamed line by
// line, or attached to the terminal.
package procexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tasuku43/ovm/internal/infra/logging"
)

// tailLines bounds how much output a streamed or attached run keeps.
const tailLines = 200

type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
	// OnLine receives every stdout and stderr line in arrival order.
	OnLine func(line string)
	// Stdin, Stdout and Stderr attach the child directly when OnLine is nil
	// and Stdout is set.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return logging.FormatCommand(c.Name, c.Args)
}

type Result struct {
	Stdout   string
	Stderr   string
	// ExitCode is -1 when the child was killed by a signal or never started.
	ExitCode int
	// Started is set once the child process exists, whatever its exit.
	Started bool
}

// Runner executes commands. Exec is the real implementation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

type Exec struct {
	Logger *log.Logger
}

func (e Exec) Run(ctx context.Context, c Command) (Result, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Result{ExitCode: -1}, fmt.Errorf("command is required")
	}
	logger := logging.Or(e.Logger)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	trace := logging.NewTrace(traceName(c.Name))
	logging.LogCommand(logger, trace, c.String())

	var (
		result Result
		err    error
	)
	switch {
	case c.OnLine != nil:
		result, err = stream(cmd, c.OnLine)
	case c.Stdout != nil:
		result, err = attach(cmd, c)
	default:
		result, err = capture(cmd)
	}
	if result.ExitCode == 0 && err != nil {
		result.ExitCode = ExitCode(err)
	}
	logging.LogStdoutLines(logger, trace, result.Stdout)
	logging.LogStderrLines(logger, trace, result.Stderr)
	logging.LogExit(logger, trace, result.ExitCode)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", c.Name, err)
	}
	return result, nil
}

func capture(cmd *exec.Cmd) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	started, err := startAndWait(cmd)
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: ExitCode(err), Started: started}, err
}

func attach(cmd *exec.Cmd, c Command) (Result, error) {
	stderrTail := &tail{}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(c.Stderr, stderrTail)
	} else {
		cmd.Stderr = stderrTail
	}
	started, err := startAndWait(cmd)
	return Result{Stderr: stderrTail.String(), ExitCode: ExitCode(err), Started: started}, err
}

func startAndWait(cmd *exec.Cmd) (bool, error) {
	if err := cmd.Start(); err != nil {
		return false, err
	}
	return true, cmd.Wait()
}

type streamLine struct {
	text   string
	stderr bool
}

func stream(cmd *exec.Cmd, onLine func(string)) (Result, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, err
	}

	lines := make(chan streamLine)
	var wg sync.WaitGroup
	scan := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lines <- streamLine{text: scanner.Text(), stderr: isStderr}
		}
	}
	wg.Add(2)
	go scan(stdoutPipe, false)
	go scan(stderrPipe, true)
	go func() {
		wg.Wait()
		close(lines)
	}()

	stdoutTail := &tail{}
	stderrTail := &tail{}
	for line := range lines {
		if line.stderr {
			stderrTail.add(line.text)
		} else {
			stdoutTail.add(line.text)
		}
		onLine(line.text)
	}
	err = cmd.Wait()
	return Result{Stdout: stdoutTail.String(), Stderr: stderrTail.String(), ExitCode: ExitCode(err), Started: true}, err
}

// ExitCode extracts the exit status from an error returned by exec.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	return exitErr.ExitCode()
}

func traceName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// tail keeps the last tailLines lines written to it.
type tail struct {
	mu      sync.Mutex
	lines   []string
	partial string
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text := t.partial + string(p)
	parts := strings.Split(text, "\n")
	t.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		t.push(line)
	}
	return len(p), nil
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(line)
}

func (t *tail) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLines {
		t.lines = t.lines[len(t.lines)-tailLines:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := strings.Join(t.lines, "\n")
	if t.partial != "" {
		if out != "" {
			out += "\n"
		}
		out += t.partial
	}
	return out
}
