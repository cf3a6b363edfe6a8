// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a parsed version number. The zero value is "0".
	// Versions are immutable; all accessors return copies.
	Version struct {
		components []uint64
		pre        []string
		build      string
	}

	// InvalidVersionError is returned when a string is not a well-formed version.
	InvalidVersionError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid version %q", e.Value)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Parse parses a version string. Parsing is strict: every numeric component
// must be a non-negative integer without leading zeros, and only the final
// component may carry a "-prerelease" and/or "+build" suffix.
func Parse(s string) (Version, error) {
	invalid := func(reason string) (Version, error) {
		return Version{}, &InvalidVersionError{Value: s, Reason: reason}
	}

	if s == "" {
		return invalid("empty string")
	}

	rest := s
	var build string
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		build = rest[i+1:]
		rest = rest[:i]
		if err := checkIdentifiers(build, false); err != "" {
			return invalid("build metadata " + err)
		}
	}

	var pre []string
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		preStr := rest[i+1:]
		rest = rest[:i]
		if err := checkIdentifiers(preStr, true); err != "" {
			return invalid("pre-release " + err)
		}
		pre = strings.Split(preStr, ".")
	}

	if rest == "" {
		return invalid("missing numeric components")
	}

	parts := strings.Split(rest, ".")
	components := make([]uint64, 0, len(parts))
	for i, part := range parts {
		n, err := parseComponent(part)
		if err != "" {
			return invalid(fmt.Sprintf("component %d %s", i+1, err))
		}
		components = append(components, n)
	}

	return Version{components: components, pre: pre, build: build}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether s parses as a version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func parseComponent(part string) (uint64, string) {
	if part == "" {
		return 0, "is empty"
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return 0, fmt.Sprintf("%q is not a non-negative integer", part)
		}
	}
	if len(part) > 1 && part[0] == '0' {
		return 0, fmt.Sprintf("%q has a leading zero", part)
	}
	n, err := strconv.ParseUint(part, 10, 64)
	if err != nil {
		return 0, fmt.Sprintf("%q is out of range", part)
	}
	return n, ""
}

// checkIdentifiers validates a dot-separated identifier list. Pre-release
// numeric identifiers must not have leading zeros; build identifiers may.
func checkIdentifiers(s string, rejectLeadingZero bool) string {
	if s == "" {
		return "is empty"
	}
	for ident := range strings.SplitSeq(s, ".") {
		if ident == "" {
			return "has an empty identifier"
		}
		numeric := true
		for _, c := range ident {
			switch {
			case c >= '0' && c <= '9':
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
				numeric = false
			default:
				return fmt.Sprintf("identifier %q contains %q", ident, c)
			}
		}
		if rejectLeadingZero && numeric && len(ident) > 1 && ident[0] == '0' {
			return fmt.Sprintf("identifier %q has a leading zero", ident)
		}
	}
	return ""
}

// Component returns the i-th numeric component, or 0 when the version has
// fewer components.
func (v Version) Component(i int) uint64 {
	if i < 0 || i >= len(v.components) {
		return 0
	}
	return v.components[i]
}

// Components returns a copy of the numeric components.
func (v Version) Components() []uint64 {
	if len(v.components) == 0 {
		return []uint64{0}
	}
	out := make([]uint64, len(v.components))
	copy(out, v.components)
	return out
}

// Major returns the first component.
func (v Version) Major() uint64 { return v.Component(0) }

// Minor returns the second component.
func (v Version) Minor() uint64 { return v.Component(1) }

// Patch returns the third component.
func (v Version) Patch() uint64 { return v.Component(2) }

// Prerelease returns the pre-release suffix without the leading '-'.
func (v Version) Prerelease() string { return strings.Join(v.pre, ".") }

// Build returns the build metadata without the leading '+'.
func (v Version) Build() string { return v.build }

// IsPrerelease reports whether the version carries a pre-release suffix.
func (v Version) IsPrerelease() bool { return len(v.pre) > 0 }

// IsZero reports whether v is the zero Version, which Parse never returns.
func (v Version) IsZero() bool { return len(v.components) == 0 && len(v.pre) == 0 && v.build == "" }

// String renders the version. Parse(v.String()) reproduces v.
func (v Version) String() string {
	var sb strings.Builder
	if len(v.components) == 0 {
		sb.WriteString("0")
	}
	for i, c := range v.components {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(c, 10))
	}
	if len(v.pre) > 0 {
		sb.WriteByte('-')
		sb.WriteString(v.Prerelease())
	}
	if v.build != "" {
		sb.WriteByte('+')
		sb.WriteString(v.build)
	}
	return sb.String()
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or higher than o.
// Build metadata is ignored.
func (v Version) Compare(o Version) int {
	n := max(len(v.components), len(o.components))
	for i := range n {
		a, b := v.Component(i), o.Component(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return comparePrerelease(v.pre, o.pre)
}

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Compare is the package-level form of Version.Compare.
func Compare(a, b Version) int { return a.Compare(b) }

// comparePrerelease orders pre-release identifier lists. A release (empty
// list) ranks above any pre-release.
func comparePrerelease(a, b []string) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareIdentifier(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	aNum, bNum := aErr == nil, bErr == nil

	switch {
	case aNum && bNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}
