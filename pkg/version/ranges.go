// SPDX-License-Identifier: MPL-2.0

package version

import "strings"

// Ranges is a set of alternative predicates. A version satisfies Ranges when
// any predicate accepts it. An empty Ranges accepts every version.
type Ranges []Predicate

// ParseRanges parses each string as a predicate. The first failure is returned.
func ParseRanges(ss []string) (Ranges, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make(Ranges, 0, len(ss))
	for _, s := range ss {
		p, err := ParsePredicate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// MustParseRanges is like ParseRanges but panics on error.
func MustParseRanges(ss ...string) Ranges {
	r, err := ParseRanges(ss)
	if err != nil {
		panic(err)
	}
	return r
}

// Test reports whether v satisfies at least one predicate.
func (r Ranges) Test(v Version) bool {
	if len(r) == 0 {
		return true
	}
	for _, p := range r {
		if p.Test(v) {
			return true
		}
	}
	return false
}

// IsAny reports whether r accepts every version without inspecting it.
func (r Ranges) IsAny() bool {
	if len(r) == 0 {
		return true
	}
	for _, p := range r {
		if p.Kind() == KindAny {
			return true
		}
	}
	return false
}

// String renders the alternatives joined by " || ".
func (r Ranges) String() string {
	if len(r) == 0 {
		return "*"
	}
	parts := make([]string, len(r))
	for i, p := range r {
		parts[i] = p.String()
	}
	return strings.Join(parts, " || ")
}

// Strings returns the rendered form of each alternative.
func (r Ranges) Strings() []string {
	out := make([]string, len(r))
	for i, p := range r {
		out[i] = p.String()
	}
	return out
}
