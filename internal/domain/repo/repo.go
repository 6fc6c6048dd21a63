// Package repo maintains the shared clone of each source repository.
package repo

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultHost = "github.com"

// Repository identifies one upstream repository and its shared local clone.
type Repository struct {
	Organization string
	Name         string
	// URL is the clone URL. Empty means it is derived from the organization
	// and name with the manager's protocol.
	URL string
	// Path of the shared clone, filled in by Manager.Resolve.
	Path string
}

// FullName returns "<organization>/<name>".
func (r Repository) FullName() string {
	return r.Organization + "/" + r.Name
}

// RemoteURL returns the clone URL for the given protocol ("ssh" or "https").
func (r Repository) RemoteURL(protocol string) string {
	if r.URL != "" {
		return r.URL
	}
	if protocol == "ssh" {
		return fmt.Sprintf("git@%s:%s.git", defaultHost, r.FullName())
	}
	return fmt.Sprintf("https://%s/%s.git", defaultHost, r.FullName())
}

// Parse accepts "org/name", https, ssh and file URLs.
func Parse(input string) (Repository, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Repository{}, fmt.Errorf("repository is empty")
	}

	var path string
	remote := trimmed

	switch {
	case strings.HasPrefix(trimmed, "git@"):
		at := strings.Index(trimmed, "@")
		colon := strings.Index(trimmed, ":")
		if at < 0 || colon < 0 || colon < at {
			return Repository{}, fmt.Errorf("invalid ssh repository: %q", input)
		}
		path = trimmed[colon+1:]
	case strings.HasPrefix(trimmed, "https://"):
		u, err := url.Parse(trimmed)
		if err != nil {
			return Repository{}, fmt.Errorf("invalid https repository: %q", input)
		}
		path = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(trimmed, "file://"):
		u, err := url.Parse(trimmed)
		if err != nil {
			return Repository{}, fmt.Errorf("invalid file repository: %q", input)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return Repository{}, fmt.Errorf("file repository must end with <org>/<name>: %q", input)
		}
		path = strings.Join(parts[len(parts)-2:], "/")
	case strings.Contains(trimmed, "://"):
		return Repository{}, fmt.Errorf("repository must be org/name, ssh, https, or file: %q", input)
	default:
		path = trimmed
		remote = ""
	}

	org, name, err := splitOrgName(path)
	if err != nil {
		return Repository{}, fmt.Errorf("%w: %q", err, input)
	}
	return Repository{Organization: org, Name: name, URL: remote}, nil
}

func splitOrgName(path string) (string, string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", "", fmt.Errorf("repository path is empty")
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("repository path must be <org>/<name>")
	}

	org := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if org == "" || name == "" {
		return "", "", fmt.Errorf("org/name cannot be empty")
	}
	return org, name, nil
}
