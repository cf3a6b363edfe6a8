// SPDX-License-Identifier: MPL-2.0

package modgraph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

const (
	// WarnDuplicateModule is the Warning code for the same id and version
	// found at more than one location.
	WarnDuplicateModule = "duplicate_module"
	// WarnShadowedBuiltin is the Warning code for a discovered module that
	// uses the id of a builtin and is therefore left out.
	WarnShadowedBuiltin = "shadowed_builtin"
)

type (
	// Warning is a non-fatal observation made while building the graph.
	Warning struct {
		Code    string
		Message string
		// Candidates lists the involved candidates, preferred one first.
		Candidates []*Candidate
	}

	// Graph is the read-only dependency graph of one resolution attempt.
	// Every candidate sharing an id is kept as an alternative.
	Graph struct {
		candidates []*Candidate
		order      map[*Candidate]int
		byID       map[string][]*Candidate
		providers  map[string][]*Candidate
		children   map[*Candidate][]*Candidate
		ids        []string
		warnings   []Warning
	}
)

// Build creates the graph for cands. Candidates are ordered by discovery
// index; equal indexes keep their input order. A candidate whose parent is
// not part of the input is treated as unreachable and dropped. Builtins have
// fixed versions: a non-builtin candidate with the id of a builtin is
// dropped with a WarnShadowedBuiltin warning, along with its nested modules.
func Build(cands []*Candidate) *Graph {
	sorted := slices.DeleteFunc(slices.Clone(cands), func(c *Candidate) bool { return c == nil })
	slices.SortStableFunc(sorted, func(a, b *Candidate) int { return cmp.Compare(a.index, b.index) })

	g := &Graph{
		order:     make(map[*Candidate]int, len(sorted)),
		byID:      make(map[string][]*Candidate),
		providers: make(map[string][]*Candidate),
		children:  make(map[*Candidate][]*Candidate),
	}

	builtins := make(map[string]*Candidate)
	for _, c := range sorted {
		if _, seen := builtins[c.id]; c.builtin && !seen {
			builtins[c.id] = c
		}
	}

	var shadowed []Warning
	present := make(map[*Candidate]bool, len(sorted))
	for _, c := range sorted {
		if b := builtins[c.id]; b != nil && !c.builtin {
			shadowed = append(shadowed, Warning{
				Code: WarnShadowedBuiltin,
				Message: fmt.Sprintf("module %s %s at %s uses the id of builtin %s and is ignored",
					c.id, c.version, c.location, b),
				Candidates: []*Candidate{b, c},
			})
			continue
		}
		present[c] = true
	}

	for _, c := range sorted {
		if !present[c] || !parentsPresent(c, present) {
			continue
		}
		if _, dup := g.order[c]; dup {
			continue
		}
		g.order[c] = len(g.candidates)
		g.candidates = append(g.candidates, c)

		if _, seen := g.byID[c.id]; !seen {
			g.ids = append(g.ids, c.id)
		}
		g.byID[c.id] = append(g.byID[c.id], c)
		for _, id := range c.Occupied() {
			g.providers[id] = append(g.providers[id], c)
		}
		if c.parent != nil {
			g.children[c.parent] = append(g.children[c.parent], c)
		}
	}

	g.warnings = append(shadowed, duplicateWarnings(g)...)
	return g
}

func parentsPresent(c *Candidate, present map[*Candidate]bool) bool {
	for p := c.parent; p != nil; p = p.parent {
		if !present[p] {
			return false
		}
	}
	return true
}

// duplicateWarnings reports ids that have several candidates with an equal
// version at different locations. The first discovered is preferred.
func duplicateWarnings(g *Graph) []Warning {
	var out []Warning
	for _, id := range g.ids {
		bucket := g.byID[id]
		reported := make(map[*Candidate]bool)
		for i, first := range bucket {
			if reported[first] {
				continue
			}
			group := []*Candidate{first}
			for _, other := range bucket[i+1:] {
				if other.version.Equal(first.version) && other.location != first.location {
					group = append(group, other)
					reported[other] = true
				}
			}
			if len(group) < 2 {
				continue
			}
			locs := make([]string, len(group))
			for j, c := range group {
				locs[j] = c.location
			}
			out = append(out, Warning{
				Code: WarnDuplicateModule,
				Message: fmt.Sprintf("module %s %s found at %d locations (%s); %s is preferred by discovery order",
					id, first.version, len(group), strings.Join(locs, ", "), first.location),
				Candidates: group,
			})
		}
	}
	return out
}

// Len returns the number of candidates.
func (g *Graph) Len() int { return len(g.candidates) }

// Candidates returns all candidates in discovery order.
func (g *Graph) Candidates() []*Candidate { return slices.Clone(g.candidates) }

// Contains reports whether c is part of the graph.
func (g *Graph) Contains(c *Candidate) bool {
	_, ok := g.order[c]
	return ok
}

// Order returns the position of c in discovery order, or -1.
func (g *Graph) Order(c *Candidate) int {
	if i, ok := g.order[c]; ok {
		return i
	}
	return -1
}

// IDs returns the own ids of all candidates, in first-discovery order.
func (g *Graph) IDs() []string { return slices.Clone(g.ids) }

// CandidatesFor returns the candidates whose own id is id.
func (g *Graph) CandidatesFor(id string) []*Candidate { return slices.Clone(g.byID[id]) }

// Providers returns the candidates occupying id, as own id or alias.
func (g *Graph) Providers(id string) []*Candidate { return slices.Clone(g.providers[id]) }

// Has reports whether any candidate occupies id.
func (g *Graph) Has(id string) bool { return len(g.providers[id]) > 0 }

// Matching returns the candidates satisfying the target and ranges of d.
func (g *Graph) Matching(d Dependency) []*Candidate {
	var out []*Candidate
	for _, c := range g.providers[d.Target] {
		if d.Ranges.Test(c.version) {
			out = append(out, c)
		}
	}
	return out
}

// Children returns the candidates nested directly inside c.
func (g *Graph) Children(c *Candidate) []*Candidate { return slices.Clone(g.children[c]) }

// Roots returns the non-nested candidates.
func (g *Graph) Roots() []*Candidate {
	var out []*Candidate
	for _, c := range g.candidates {
		if c.parent == nil {
			out = append(out, c)
		}
	}
	return out
}

// Warnings returns the observations made while building the graph.
func (g *Graph) Warnings() []Warning { return slices.Clone(g.warnings) }
