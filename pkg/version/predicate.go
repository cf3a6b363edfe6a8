// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindAny matches every version.
	KindAny PredicateKind = iota
	// KindExact matches versions equal to the operand.
	KindExact
	// KindGreater matches versions strictly greater than the operand.
	KindGreater
	// KindGreaterOrEqual matches versions greater than or equal to the operand.
	KindGreaterOrEqual
	// KindLess matches versions strictly lower than the operand.
	KindLess
	// KindLessOrEqual matches versions lower than or equal to the operand.
	KindLessOrEqual
	// KindCaret matches versions with the same major component, at or above the operand.
	KindCaret
	// KindTilde matches versions with the same major and minor components, at or above the operand.
	KindTilde
	// KindWildcard matches versions whose leading components equal the fixed segments.
	KindWildcard
	// KindAnd matches versions accepted by every sub-predicate.
	KindAnd
)

// ErrInvalidPredicate is the sentinel error wrapped by InvalidPredicateError.
var ErrInvalidPredicate = errors.New("invalid version predicate")

type (
	// PredicateKind identifies the operator of a Predicate.
	PredicateKind int

	// Predicate is a boolean test over a Version. Implementations are
	// side-effect-free and total.
	Predicate interface {
		Test(v Version) bool
		Kind() PredicateKind
		String() string
	}

	// InvalidPredicateError is returned when a range string cannot be parsed.
	InvalidPredicateError struct {
		Value  string
		Reason string
	}

	anyPredicate struct{}

	comparePredicate struct {
		kind    PredicateKind
		operand Version
	}

	wildcardPredicate struct {
		fixed []uint64
	}

	andPredicate struct {
		terms []Predicate
	}
)

// Error implements the error interface.
func (e *InvalidPredicateError) Error() string {
	return fmt.Sprintf("invalid version predicate %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPredicate so callers can use errors.Is for programmatic detection.
func (e *InvalidPredicateError) Unwrap() error { return ErrInvalidPredicate }

// String returns the operator symbol or name of the kind.
func (k PredicateKind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindExact:
		return "="
	case KindGreater:
		return ">"
	case KindGreaterOrEqual:
		return ">="
	case KindLess:
		return "<"
	case KindLessOrEqual:
		return "<="
	case KindCaret:
		return "^"
	case KindTilde:
		return "~"
	case KindWildcard:
		return "wildcard"
	case KindAnd:
		return "and"
	default:
		return "unknown"
	}
}

// Any returns a predicate accepting every version.
func Any() Predicate { return anyPredicate{} }

// Exact returns a predicate accepting versions equal to v (build metadata ignored).
func Exact(v Version) Predicate { return comparePredicate{kind: KindExact, operand: v} }

// Greater returns a predicate accepting versions above v.
func Greater(v Version) Predicate { return comparePredicate{kind: KindGreater, operand: v} }

// GreaterOrEqual returns a predicate accepting versions at or above v.
func GreaterOrEqual(v Version) Predicate {
	return comparePredicate{kind: KindGreaterOrEqual, operand: v}
}

// Less returns a predicate accepting versions below v.
func Less(v Version) Predicate { return comparePredicate{kind: KindLess, operand: v} }

// LessOrEqual returns a predicate accepting versions at or below v.
func LessOrEqual(v Version) Predicate { return comparePredicate{kind: KindLessOrEqual, operand: v} }

// Caret returns a predicate accepting versions with v's major component that
// are at or above v.
func Caret(v Version) Predicate { return comparePredicate{kind: KindCaret, operand: v} }

// Tilde returns a predicate accepting versions with v's major and minor
// components that are at or above v.
func Tilde(v Version) Predicate { return comparePredicate{kind: KindTilde, operand: v} }

// Wildcard returns a predicate accepting versions whose leading components
// equal fixed. An empty fixed list accepts every version.
func Wildcard(fixed ...uint64) Predicate {
	cp := make([]uint64, len(fixed))
	copy(cp, fixed)
	return wildcardPredicate{fixed: cp}
}

// And returns a predicate accepting versions accepted by every term.
// A single term is returned as-is; no terms yields Any.
func And(terms ...Predicate) Predicate {
	flat := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		if inner, ok := t.(andPredicate); ok {
			flat = append(flat, inner.terms...)
			continue
		}
		flat = append(flat, t)
	}
	switch len(flat) {
	case 0:
		return anyPredicate{}
	case 1:
		return flat[0]
	}
	return andPredicate{terms: flat}
}

func (anyPredicate) Test(Version) bool   { return true }
func (anyPredicate) Kind() PredicateKind { return KindAny }
func (anyPredicate) String() string      { return "*" }

func (p comparePredicate) Test(v Version) bool {
	c := v.Compare(p.operand)
	switch p.kind {
	case KindExact:
		return c == 0
	case KindGreater:
		return c > 0
	case KindGreaterOrEqual:
		return c >= 0
	case KindLess:
		return c < 0
	case KindLessOrEqual:
		return c <= 0
	case KindCaret:
		return c >= 0 && v.Major() == p.operand.Major()
	case KindTilde:
		if c < 0 || v.Major() != p.operand.Major() {
			return false
		}
		// "~1" pins only the major component.
		if len(p.operand.components) < 2 {
			return true
		}
		return v.Minor() == p.operand.Minor()
	default:
		return false
	}
}

func (p comparePredicate) Kind() PredicateKind { return p.kind }

func (p comparePredicate) String() string {
	if p.kind == KindExact {
		return p.operand.String()
	}
	return p.kind.String() + p.operand.String()
}

func (p wildcardPredicate) Test(v Version) bool {
	for i, c := range p.fixed {
		if v.Component(i) != c {
			return false
		}
	}
	return true
}

func (wildcardPredicate) Kind() PredicateKind { return KindWildcard }

func (p wildcardPredicate) String() string {
	if len(p.fixed) == 0 {
		return "x"
	}
	var sb strings.Builder
	for _, c := range p.fixed {
		fmt.Fprintf(&sb, "%d.", c)
	}
	sb.WriteString("x")
	return sb.String()
}

func (p andPredicate) Test(v Version) bool {
	for _, t := range p.terms {
		if !t.Test(v) {
			return false
		}
	}
	return true
}

func (andPredicate) Kind() PredicateKind { return KindAnd }

func (p andPredicate) String() string {
	parts := make([]string, len(p.terms))
	for i, t := range p.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Terms returns the AND-ed terms of p. A non-AND predicate yields itself.
func Terms(p Predicate) []Predicate {
	if a, ok := p.(andPredicate); ok {
		out := make([]Predicate, len(a.terms))
		copy(out, a.terms)
		return out
	}
	return []Predicate{p}
}

// ParsePredicate parses a range string. Whitespace separated terms are AND-ed.
// An empty or all-whitespace string is equivalent to "*".
func ParsePredicate(s string) (Predicate, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return anyPredicate{}, nil
	}

	// Allow a detached operator (">= 1.2") by gluing it to the next field.
	tokens := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) {
			if i+1 >= len(fields) {
				return nil, &InvalidPredicateError{Value: s, Reason: fmt.Sprintf("operator %q has no operand", f)}
			}
			f += fields[i+1]
			i++
		}
		tokens = append(tokens, f)
	}

	terms := make([]Predicate, 0, len(tokens))
	for _, tok := range tokens {
		p, err := parseTerm(tok)
		if err != nil {
			return nil, &InvalidPredicateError{Value: s, Reason: err.Error()}
		}
		terms = append(terms, p)
	}
	return And(terms...), nil
}

// MustParsePredicate is like ParsePredicate but panics on error.
func MustParsePredicate(s string) Predicate {
	p, err := ParsePredicate(s)
	if err != nil {
		panic(err)
	}
	return p
}

func isOperator(s string) bool {
	switch s {
	case "=", ">", ">=", "<", "<=", "^", "~":
		return true
	}
	return false
}

func parseTerm(tok string) (Predicate, error) {
	switch tok {
	case "*", "x", "X":
		return anyPredicate{}, nil
	}

	var kind PredicateKind
	operand := tok
	switch {
	case strings.HasPrefix(tok, ">="):
		kind, operand = KindGreaterOrEqual, tok[2:]
	case strings.HasPrefix(tok, "<="):
		kind, operand = KindLessOrEqual, tok[2:]
	case strings.HasPrefix(tok, ">"):
		kind, operand = KindGreater, tok[1:]
	case strings.HasPrefix(tok, "<"):
		kind, operand = KindLess, tok[1:]
	case strings.HasPrefix(tok, "="):
		kind, operand = KindExact, tok[1:]
	case strings.HasPrefix(tok, "^"):
		kind, operand = KindCaret, tok[1:]
	case strings.HasPrefix(tok, "~"):
		kind, operand = KindTilde, tok[1:]
	default:
		kind = KindExact
	}

	if fixed, ok, err := parseWildcard(operand); ok || err != nil {
		if err != nil {
			return nil, err
		}
		if kind != KindExact {
			return nil, fmt.Errorf("operator %q cannot be combined with wildcard %q", kind, operand)
		}
		return wildcardPredicate{fixed: fixed}, nil
	}

	v, err := Parse(operand)
	if err != nil {
		return nil, err
	}
	return comparePredicate{kind: kind, operand: v}, nil
}

// parseWildcard recognises "1.2.x" style operands. ok is false when the
// operand contains no wildcard segment.
func parseWildcard(operand string) (fixed []uint64, ok bool, err error) {
	parts := strings.Split(operand, ".")
	wildAt := -1
	for i, p := range parts {
		if p == "x" || p == "X" || p == "*" {
			wildAt = i
			break
		}
	}
	if wildAt < 0 {
		return nil, false, nil
	}
	for _, p := range parts[wildAt+1:] {
		if p != "x" && p != "X" && p != "*" {
			return nil, true, fmt.Errorf("wildcard %q must only be followed by wildcards", operand)
		}
	}
	fixed = make([]uint64, 0, wildAt)
	for i, p := range parts[:wildAt] {
		n, reason := parseComponent(p)
		if reason != "" {
			return nil, true, fmt.Errorf("wildcard %q component %d %s", operand, i+1, reason)
		}
		fixed = append(fixed, n)
	}
	return fixed, true, nil
}
