// Package gittest builds throwaway git remotes for integration tests.
package gittest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Require skips the test when git is not installed.
func Require(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// Isolate points git at a private global config so tests never read the
// developer's settings.
func Isolate(t testing.TB, tmp string) {
	t.Helper()
	configPath := filepath.Join(tmp, "gitconfig")
	data := "[user]\n\tname = ovm test\n\temail = ovm@example.com\n[init]\n\tdefaultBranch = master\n[advice]\n\tdetachedHead = false\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write gitconfig: %v", err)
	}
	t.Setenv("GIT_CONFIG_GLOBAL", configPath)
	t.Setenv("GIT_CONFIG_SYSTEM", "/dev/null")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_TERMINAL_PROMPT", "0")
}

// Remote is a bare repository plus a seed clone used to push new commits.
type Remote struct {
	Path string
	URL  string
	seed string
}

// NewRemote creates <tmp>/remotes/<org>/<name>.git with a master branch and
// one extra branch per name in branches.
func NewRemote(t testing.TB, tmp, org, name string, branches ...string) *Remote {
	t.Helper()
	remotePath := filepath.Join(tmp, "remotes", org, name+".git")
	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		t.Fatalf("mkdir remote: %v", err)
	}
	Run(t, "", "init", "--bare", remotePath)

	seed := filepath.Join(tmp, "seeds", org, name)
	Run(t, "", "init", seed)
	Run(t, seed, "checkout", "-B", "master")
	WriteFile(t, filepath.Join(seed, "README.md"), "hello\n")
	Run(t, seed, "add", ".")
	Run(t, seed, "commit", "-m", "init")
	Run(t, seed, "remote", "add", "origin", remotePath)
	Run(t, seed, "push", "origin", "master")
	for _, branch := range branches {
		Run(t, seed, "checkout", "-B", branch, "master")
		WriteFile(t, filepath.Join(seed, "BRANCH"), branch+"\n")
		Run(t, seed, "add", ".")
		Run(t, seed, "commit", "-m", "branch "+branch)
		Run(t, seed, "push", "origin", branch)
	}
	Run(t, "", "--git-dir", remotePath, "symbolic-ref", "HEAD", "refs/heads/master")
	return &Remote{
		Path: remotePath,
		URL:  "file://" + filepath.ToSlash(remotePath),
		seed: seed,
	}
}

// Push adds a commit touching file on branch and pushes it.
func (r *Remote) Push(t testing.TB, branch, file string) {
	t.Helper()
	Run(t, r.seed, "checkout", branch)
	WriteFile(t, filepath.Join(r.seed, file), fmt.Sprintf("%s on %s\n", file, branch))
	Run(t, r.seed, "add", ".")
	Run(t, r.seed, "commit", "-m", "update "+file)
	Run(t, r.seed, "push", "origin", branch)
}

func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Env = os.Environ()
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %s failed: %v\nstderr:\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String())
}
