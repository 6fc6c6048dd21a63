package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// These are intended to be set via -ldflags.
//
// Example:
//
//	go build -ldflags "-X github.com/tasuku43/ovm/internal/cli.buildVersion=v0.1.0 -X github.com/tasuku43/ovm/internal/cli.buildCommit=abc123"
var (
	buildVersion = "dev"
	buildCommit  = ""
	buildDate    = ""
)

func versionLine() string {
	v := strings.TrimSpace(buildVersion)
	if v == "" {
		v = "dev"
	}
	parts := []string{fmt.Sprintf("ovm %s", v)}
	if c := strings.TrimSpace(buildCommit); c != "" {
		parts = append(parts, c)
	}
	if d := strings.TrimSpace(buildDate); d != "" {
		parts = append(parts, d)
	}
	parts = append(parts, fmt.Sprintf("(%s %s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH))
	return strings.Join(parts, " ")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ovm version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionLine())
		},
	}
}
