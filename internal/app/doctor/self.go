package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/tasuku43/ovm/internal/infra/gitcmd"
	"golang.org/x/mod/semver"
)

type SelfResult struct {
	Issues   []Issue
	Warnings []string
	Details  []string
}

// minGitVersion is the first release reporting prunable worktrees in
// porcelain output.
const minGitVersion = "v2.31.0"

var versionPattern = regexp.MustCompile(`\b(\d+)\.(\d+)(?:\.(\d+))?`)

// SelfCheck verifies the external tools ovm drives.
func SelfCheck(ctx context.Context, lookPath func(string) (string, error)) (SelfResult, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	result := SelfResult{
		Details: []string{
			fmt.Sprintf("os: %s/%s", runtime.GOOS, runtime.GOARCH),
			fmt.Sprintf("minimum git version: %s", strings.TrimPrefix(minGitVersion, "v")),
		},
	}
	result.Warnings = append(result.Warnings, osCaveats(runtime.GOOS)...)

	if python, err := lookPath("python3"); err != nil {
		result.Warnings = append(result.Warnings, "python3 not found in PATH, sandboxes need a versioned interpreter such as python3.10")
	} else {
		result.Details = append(result.Details, fmt.Sprintf("python3 path: %s", python))
	}

	gitPath, err := lookPath("git")
	if err != nil {
		result.Issues = append(result.Issues, Issue{
			Kind:    "missing_dependency",
			Message: "git not found in PATH",
		})
		result.Details = append(result.Details, "git: not found")
		return result, nil
	}
	result.Details = append(result.Details, fmt.Sprintf("git path: %s", gitPath))

	versionOutput, err := readGitVersion(ctx)
	if err != nil {
		result.Issues = append(result.Issues, Issue{
			Kind:    "git_version_check_failed",
			Message: err.Error(),
		})
		return result, nil
	}
	result.Details = append(result.Details, fmt.Sprintf("git version: %s", versionOutput))

	parsed, ok := parseToolVersion(versionOutput)
	if !ok {
		result.Issues = append(result.Issues, Issue{
			Kind:    "invalid_git_version",
			Message: fmt.Sprintf("unable to parse git version: %s", versionOutput),
		})
		return result, nil
	}
	if semver.Compare(parsed, minGitVersion) < 0 {
		result.Issues = append(result.Issues, Issue{
			Kind:    "git_version_too_old",
			Message: fmt.Sprintf("git %s is older than required %s", strings.TrimPrefix(parsed, "v"), strings.TrimPrefix(minGitVersion, "v")),
		})
	}
	return result, nil
}

func readGitVersion(ctx context.Context) (string, error) {
	res, err := gitcmd.Run(ctx, []string{"version"}, gitcmd.Options{})
	if err != nil {
		if strings.TrimSpace(res.Stderr) != "" {
			return "", fmt.Errorf("git version failed: %s", strings.TrimSpace(res.Stderr))
		}
		return "", fmt.Errorf("git version failed: %w", err)
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", fmt.Errorf("git version returned no output")
	}
	return out, nil
}

// parseToolVersion extracts a semver string ("v2.39.1") from tool output.
func parseToolVersion(output string) (string, bool) {
	matches := versionPattern.FindStringSubmatch(output)
	if len(matches) < 3 {
		return "", false
	}
	patch := matches[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("v%s.%s.%s", matches[1], matches[2], patch)
	return v, semver.IsValid(v)
}

func osCaveats(goos string) []string {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "windows":
		return []string{"Windows is not supported: process discovery and signals need a Unix system."}
	default:
		return nil
	}
}
