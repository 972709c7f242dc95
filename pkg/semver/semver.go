// Package semver parses and orders template version strings using
// semantic-version precedence.
package semver

import (
	"errors"
	"fmt"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// ErrInvalidVersionFormat is returned for strings that are not strict
// major.minor.patch[-prerelease][+build] versions.
var ErrInvalidVersionFormat = errors.New("invalid version format")

// Version is a parsed, totally ordered version value.
type Version struct {
	v *mmsemver.Version
}

// Parse parses s as a strict semantic version.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty version string", ErrInvalidVersionFormat)
	}
	if strings.HasSuffix(s, "-") || strings.HasSuffix(s, "+") || strings.HasSuffix(s, ".") {
		return Version{}, fmt.Errorf("%w: %q ends with a separator", ErrInvalidVersionFormat, s)
	}

	v, err := mmsemver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersionFormat, s, err)
	}
	return Version{v: v}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1. Build metadata is ignored.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// GreaterThan reports whether v has higher precedence than other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

func (v Version) Major() uint64      { return v.v.Major() }
func (v Version) Minor() uint64      { return v.v.Minor() }
func (v Version) Patch() uint64      { return v.v.Patch() }
func (v Version) Prerelease() string { return v.v.Prerelease() }
func (v Version) Metadata() string   { return v.v.Metadata() }

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Compare parses both strings and compares them.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// IsNewer reports whether candidate strictly follows baseline. It returns
// false when either string fails to parse; call Parse to surface the error.
func IsNewer(candidate, baseline string) bool {
	c, err := Compare(candidate, baseline)
	if err != nil {
		return false
	}
	return c > 0
}
