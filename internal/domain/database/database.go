// Package database describes the databases the target application runs
// against.
package database

import (
	"context"

	"github.com/tasuku43/ovm/internal/domain/version"
)

type Edition string

const (
	EditionCommunity  Edition = "community"
	EditionEnterprise Edition = "enterprise"
)

// ParseEdition maps free text to an edition; anything but "enterprise" is
// community.
func ParseEdition(value string) Edition {
	if value == string(EditionEnterprise) || value == "e" {
		return EditionEnterprise
	}
	return EditionCommunity
}

// Database is what the process controller needs to know about a database.
type Database interface {
	Name() string
	// Version reports the installed release; ok is false when unknown.
	Version(ctx context.Context) (v version.Version, ok bool, err error)
	Edition(ctx context.Context) (Edition, error)
	Exists(ctx context.Context) (bool, error)
	Running(ctx context.Context) bool
}

// ProcessProbe reports whether an application process serves a database.
type ProcessProbe interface {
	Running(ctx context.Context, database string) bool
}
