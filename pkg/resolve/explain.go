// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/modsolve/modsolve/pkg/modgraph"
)

const (
	// MissingDependency: a required id has no candidate at all.
	MissingDependency ConflictReason = iota
	// NoMatchingVersion: candidates exist for the required id but none is in range.
	NoMatchingVersion
	// UnselectableVersion: matching candidates exist but each is ruled out
	// by another conflict in the set.
	UnselectableVersion
	// ConflictViolation: a CONFLICTS edge matches a candidate that must be selected.
	ConflictViolation
	// BreaksViolation: a BREAKS edge matches a candidate that must be selected.
	BreaksViolation
	// DuplicateProvider: several modules that must be selected occupy the same id.
	DuplicateProvider
)

type (
	// ConflictReason classifies a Conflict.
	ConflictReason int

	// Requirement cites a REQUIRES edge that pins down which versions may be
	// selected for an id.
	Requirement struct {
		Candidate  *modgraph.Candidate
		Dependency modgraph.Dependency
		// Only lists the matches of the requirement.
		Only []*modgraph.Candidate
	}

	// Conflict is one edge of the minimal set that makes resolution fail.
	Conflict struct {
		Reason ConflictReason
		// Source declares Dependency. Nil for DuplicateProvider.
		Source     *modgraph.Candidate
		Dependency modgraph.Dependency
		// Present lists every candidate occupying the target id.
		Present []*modgraph.Candidate
		// Matching lists the candidates inside the dependency's ranges.
		Matching []*modgraph.Candidate
		// Because lists requirements in the same conflict set that leave only
		// matching versions available.
		Because []Requirement
		// Chain is the shortest path of REQUIRES and nesting edges from a
		// root candidate to Source.
		Chain []*modgraph.Candidate
		// ID is the contested id of a DuplicateProvider conflict.
		ID string
	}
)

// String returns a short name for the reason.
func (r ConflictReason) String() string {
	switch r {
	case MissingDependency:
		return "missing_dependency"
	case NoMatchingVersion:
		return "no_matching_version"
	case UnselectableVersion:
		return "unselectable_version"
	case ConflictViolation:
		return "conflicts"
	case BreaksViolation:
		return "breaks"
	case DuplicateProvider:
		return "duplicate_provider"
	default:
		return "unknown"
	}
}

// Message renders a one-line explanation citing concrete candidates.
func (c Conflict) Message() string {
	d := c.Dependency
	switch c.Reason {
	case MissingDependency:
		return fmt.Sprintf("%s requires module %s version %s but no module %s is present",
			describe(c.Source), d.Target, d.Ranges, d.Target)
	case NoMatchingVersion:
		return fmt.Sprintf("%s requires module %s version %s but only %s %s present",
			describe(c.Source), d.Target, d.Ranges, joinCandidates(c.Present), isAre(len(c.Present)))
	case UnselectableVersion:
		return fmt.Sprintf("%s requires module %s version %s but %s cannot be selected alongside the other modules%s",
			describe(c.Source), d.Target, d.Ranges, joinCandidates(c.Matching), nestedNote(c.Matching))
	case ConflictViolation, BreaksViolation:
		verb := "conflicts with"
		if c.Reason == BreaksViolation {
			verb = "breaks"
		}
		msg := fmt.Sprintf("%s %s module %s", describe(c.Source), verb, joinCandidates(c.Matching))
		for _, r := range c.Because {
			msg += fmt.Sprintf(", and %s %s the only %s satisfying %s's requirement",
				joinCandidates(r.Only), isAre(len(r.Only)), versionWord(len(r.Only)), describe(r.Candidate))
		}
		if len(c.Because) == 0 && mandatoryAll(c.Matching) {
			msg += ", which cannot be left out"
		}
		return msg
	case DuplicateProvider:
		return fmt.Sprintf("id %s is occupied by %s, and only one of them may be selected but none can be left out",
			c.ID, joinCandidates(c.Present))
	default:
		return "unknown conflict"
	}
}

// ChainString renders the chain as "a 1.0 -> b 2.0".
func (c Conflict) ChainString() string {
	parts := make([]string, len(c.Chain))
	for i, cand := range c.Chain {
		parts[i] = cand.String()
	}
	return strings.Join(parts, " -> ")
}

func describe(c *modgraph.Candidate) string {
	return fmt.Sprintf("module %s (%s)", c.ID(), c.Version())
}

func joinCandidates(cs []*modgraph.Candidate) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	switch len(parts) {
	case 0:
		return "nothing"
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func isAre(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

func versionWord(n int) string {
	if n == 1 {
		return "version"
	}
	return "versions"
}

func nestedNote(cs []*modgraph.Candidate) string {
	for _, c := range cs {
		if !c.IsNested() {
			return ""
		}
	}
	if len(cs) == 0 {
		return ""
	}
	return fmt.Sprintf(" (packaged inside %s)", joinCandidates(parents(cs)))
}

func parents(cs []*modgraph.Candidate) []*modgraph.Candidate {
	var out []*modgraph.Candidate
	for _, c := range cs {
		if p := c.Parent(); p != nil && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func mandatoryAll(cs []*modgraph.Candidate) bool {
	if len(cs) == 0 {
		return false
	}
	for _, c := range cs {
		if c.IsNested() {
			return false
		}
	}
	return true
}

// explain turns a minimal edge set into conflicts in edge order.
func (p *problem) explain(core bitset) []Conflict {
	edgeIDs := core.list()
	if len(edgeIDs) == 0 {
		return p.explainStructural()
	}

	chains := p.chains()
	var out []Conflict
	for _, e := range edgeIDs {
		ed := p.edges[e]
		src := p.cands[ed.from]
		c := Conflict{
			Source:     src,
			Dependency: ed.dep,
			Present:    p.graph.Providers(ed.dep.Target),
			Matching:   p.candidates(ed.matches),
			Chain:      chains(ed.from),
		}
		switch ed.dep.Kind {
		case modgraph.Requires:
			switch {
			case len(c.Present) == 0:
				c.Reason = MissingDependency
			case len(c.Matching) == 0:
				c.Reason = NoMatchingVersion
			default:
				c.Reason = UnselectableVersion
			}
		case modgraph.Conflicts, modgraph.Breaks:
			c.Reason = ConflictViolation
			if ed.dep.Kind == modgraph.Breaks {
				c.Reason = BreaksViolation
			}
			c.Because = p.because(edgeIDs, ed.matches)
		}
		out = append(out, c)
	}
	return out
}

// because finds requirements in the set whose matches all fall inside
// targets.
func (p *problem) because(edgeIDs, targets []int) []Requirement {
	var out []Requirement
	for _, e := range edgeIDs {
		ed := p.edges[e]
		if ed.dep.Kind != modgraph.Requires || len(ed.matches) == 0 {
			continue
		}
		inside := true
		for _, m := range ed.matches {
			if !slices.Contains(targets, m) {
				inside = false
				break
			}
		}
		if inside {
			out = append(out, Requirement{
				Candidate:  p.cands[ed.from],
				Dependency: ed.dep,
				Only:       p.candidates(ed.matches),
			})
		}
	}
	return out
}

// explainStructural reports ids occupied by several nodes that must select
// a member. Ids that every member of those nodes occupies are preferred;
// otherwise every contested id is listed. Nodes an alias could stand in for
// are only considered when nothing else explains the failure.
func (p *problem) explainStructural() []Conflict {
	if out := p.contested(node.mustSelect); len(out) > 0 {
		return out
	}
	return p.contested(func(n node) bool { return n.mandatory })
}

func (p *problem) contested(counts func(node) bool) []Conflict {
	var strict, loose []Conflict
	seen := make(map[string]bool)
	for _, c := range p.cands {
		for _, id := range c.Occupied() {
			if seen[id] {
				continue
			}
			seen[id] = true

			all := make(map[int]bool)
			every := make(map[int]bool)
			for _, o := range p.graph.Providers(id) {
				n := p.nodeOf[p.index[o]]
				if !counts(p.nodes[n]) {
					continue
				}
				all[n] = true
				if p.nodeAllOccupy(n, id) {
					every[n] = true
				}
			}
			conflict := Conflict{Reason: DuplicateProvider, ID: id, Present: p.graph.Providers(id)}
			switch {
			case len(every) > 1:
				strict = append(strict, conflict)
			case len(all) > 1:
				loose = append(loose, conflict)
			}
		}
	}
	if len(strict) > 0 {
		return strict
	}
	return loose
}

func (p *problem) nodeAllOccupy(n int, id string) bool {
	for _, m := range p.nodes[n].members {
		if !p.cands[m].Occupies(id) {
			return false
		}
	}
	return true
}

func (p *problem) candidates(idx []int) []*modgraph.Candidate {
	out := make([]*modgraph.Candidate, len(idx))
	for i, c := range idx {
		out[i] = p.cands[c]
	}
	return out
}

// chains returns a lookup for the shortest path from an entry candidate to
// a candidate, following REQUIRES matches and nesting. Entry candidates are
// top-level candidates that no other candidate requires; they are visited
// in discovery order so ties resolve deterministically. A candidate no
// entry reaches (inside a requirement cycle) is its own chain.
func (p *problem) chains() func(int) []*modgraph.Candidate {
	required := make([]bool, len(p.cands))
	children := make([][]int, len(p.cands))
	for i := range p.cands {
		for _, e := range p.reqOf[i] {
			for _, m := range p.edges[e].matches {
				if m != i {
					required[m] = true
				}
			}
		}
		if par := p.parent[i]; par >= 0 {
			children[par] = append(children[par], i)
		}
	}

	prev := make([]int, len(p.cands))
	visited := make([]bool, len(p.cands))
	var queue []int
	for i, c := range p.cands {
		prev[i] = -1
		if !c.IsNested() && !required[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		var next []int
		for _, e := range p.reqOf[c] {
			next = append(next, p.edges[e].matches...)
		}
		next = append(next, children[c]...)
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			prev[n] = c
			queue = append(queue, n)
		}
	}

	return func(target int) []*modgraph.Candidate {
		var path []*modgraph.Candidate
		for c := target; c >= 0; c = prev[c] {
			path = append(path, p.cands[c])
		}
		slices.Reverse(path)
		return path
	}
}
