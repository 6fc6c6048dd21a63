// Package version parses and orders release identifiers of the target application.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidVersion = errors.New("invalid version")

const (
	masterLabel   = "master"
	variantPrefix = "saas-"
)

var pattern = regexp.MustCompile(`^(saas[-~])?([0-9]+)(?:\.([0-9]+))?((?:\.[0-9]+){0,3})(\+?[a-z]+)?$`)

// Variant releases published before 11.0 were numbered on their own track
// ("saas-6") and map onto the major release they were cut from.
var legacyVariantMajors = map[int]int{
	1: 7, 2: 7, 3: 7, 4: 7, 5: 7,
	6: 8,
	7: 9, 8: 9, 9: 9, 10: 9, 11: 9, 12: 9, 13: 9,
	14: 10, 15: 10, 16: 10, 17: 10, 18: 10,
}

// Version is an immutable, comparable release identifier.
type Version struct {
	major   int
	minor   int
	sub     [3]int
	master  bool
	variant bool
	edition string
}

// Master is the development branch version.
var Master = Version{master: true}

// Parse reads a version string such as "17.0", "saas~16.4", "saas-6", "16.0.1.2+e" or "master".
func Parse(text string) (Version, error) {
	value := strings.ToLower(strings.TrimSpace(text))
	if value == masterLabel {
		return Master, nil
	}
	match := pattern.FindStringSubmatch(value)
	if match == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
	}

	v := Version{variant: match[1] != ""}
	major, err := strconv.Atoi(match[2])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
	}
	v.major = major

	if match[3] == "" {
		if v.variant {
			if mapped, ok := legacyVariantMajors[major]; ok {
				v.major = mapped
				v.minor = major
			}
		}
	} else {
		minor, err := strconv.Atoi(match[3])
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
		}
		v.minor = minor
	}

	if match[4] != "" {
		parts := strings.Split(strings.TrimPrefix(match[4], "."), ".")
		for i, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil {
				return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, text)
			}
			v.sub[i] = n
		}
	}
	v.edition = strings.TrimPrefix(match[5], "+")
	return v, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) Major() int      { return v.major }
func (v Version) Minor() int      { return v.minor }
func (v Version) Sub() [3]int     { return v.sub }
func (v Version) Master() bool    { return v.master }
func (v Version) Variant() bool   { return v.variant }
func (v Version) Edition() string { return v.edition }

// String renders "master" or "[saas-]major.minor". Sub-versions and edition
// markers are dropped.
func (v Version) String() string {
	if v.master {
		return masterLabel
	}
	s := fmt.Sprintf("%d.%d", v.major, v.minor)
	if v.variant {
		s = variantPrefix + s
	}
	return s
}

// Branch returns the name of the upstream branch carrying this version.
func (v Version) Branch() string {
	if v.master {
		return masterLabel
	}
	if v.variant && v.major < 11 {
		if mapped, ok := legacyVariantMajors[v.minor]; ok && mapped == v.major {
			return fmt.Sprintf("%s%d", variantPrefix, v.minor)
		}
	}
	return v.String()
}

// Compare returns -1, 0 or 1. Master sorts before every numbered version and a
// variant sorts after the regular release of the same major.minor.
func Compare(a, b Version) int {
	if a.master != b.master {
		if a.master {
			return -1
		}
		return 1
	}
	if a.master {
		return 0
	}
	if c := compareInt(a.major, b.major); c != 0 {
		return c
	}
	if c := compareInt(a.minor, b.minor); c != 0 {
		return c
	}
	for i := range a.sub {
		if c := compareInt(a.sub[i], b.sub[i]); c != 0 {
			return c
		}
	}
	if c := strings.Compare(a.edition, b.edition); c != 0 {
		return c
	}
	switch {
	case a.variant == b.variant:
		return 0
	case a.variant:
		return 1
	default:
		return -1
	}
}

func (v Version) Less(other Version) bool  { return Compare(v, other) < 0 }
func (v Version) Equal(other Version) bool { return Compare(v, other) == 0 }

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
