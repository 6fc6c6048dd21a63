package gitcmd

import (
	"context"
	"strings"
)

// RemoteURL returns the URL of remote, and false when the remote is not
// configured.
func RemoteURL(ctx context.Context, dir, remote string) (string, bool, error) {
	res, err := Run(ctx, []string{"remote", "get-url", remote}, Options{Dir: dir})
	if err != nil {
		// exit 2: no such remote
		if res.ExitCode == 2 || strings.Contains(res.Stderr, "No such remote") {
			return "", false, nil
		}
		return "", false, wrapError("remote get-url", res, err)
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// SetRemoteURL points remote at url, adding the remote when it is missing.
func SetRemoteURL(ctx context.Context, dir, remote, url string) error {
	_, ok, err := RemoteURL(ctx, dir, remote)
	if err != nil {
		return err
	}
	op := "set-url"
	if !ok {
		op = "add"
	}
	res, err := Run(ctx, []string{"remote", op, remote, url}, Options{Dir: dir})
	if err != nil {
		return wrapError("remote "+op, res, err)
	}
	return nil
}
