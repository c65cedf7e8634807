// Package semver provides the version-range satisfaction predicate used to
// flag peer dependencies that resolve outside their declared range.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3. The graph
// engine never parses versions itself; it only asks [Satisfies] whether a
// resolved version matches a range, and treats a "no" as a warning.
package semver

import (
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
type Version struct {
	v *mm.Version
}

// Constraint is a semantic version range.
//
// Examples:
// - ">=1.2.0 <2.0.0"
// - "^1.0.0"
// - "~1.4"
// - "^16.8.0 || ^17.0.0"
type Constraint struct {
	c *mm.Constraints
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseConstraint parses a range. An empty range and the npm spelling
// "latest" are both treated as "*".
func ParseConstraint(raw string) (Constraint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "latest" {
		raw = "*"
	}
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c}, nil
}

func MustParseConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Check reports whether v satisfies c. Zero values never match.
func Check(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// Satisfies reports whether version satisfies rng.
//
// Unparseable input never satisfies anything, so a garbled range or version
// surfaces as a mismatch warning instead of disappearing silently.
func Satisfies(version, rng string) bool {
	v, err := ParseVersion(version)
	if err != nil {
		return false
	}
	c, err := ParseConstraint(rng)
	if err != nil {
		return false
	}
	return Check(v, c)
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// String returns the original version text.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}
