// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"math/bits"
	"slices"

	"github.com/modsolve/modsolve/pkg/modgraph"
)

type (
	// bitset is a set of small non-negative integers (edge ids).
	bitset []uint64

	// edge is one hard dependency: REQUIRES, CONFLICTS or BREAKS.
	edge struct {
		from    int
		dep     modgraph.Dependency
		matches []int
	}

	// node groups the candidates sharing an own id. A mandatory node has at
	// least one root candidate and its id must end up occupied: by one of
	// its members, or by a selected alias provider. Other nodes may stay
	// empty. A builtin node always selects a member.
	node struct {
		id        string
		members   []int
		aliases   []int
		mandatory bool
		builtin   bool
	}

	// problem is the indexed, immutable view of a graph used by the search.
	problem struct {
		graph   *modgraph.Graph
		cands   []*modgraph.Candidate
		index   map[*modgraph.Candidate]int
		nodes   []node
		nodeOf  []int
		parent  []int
		edges   []edge
		reqOf   [][]int // requires edges declared by a candidate
		negOf   [][]int // conflicts/breaks edges declared by a candidate
		negInto [][]int // conflicts/breaks edges matching a candidate
		// sharers lists, per candidate, the other candidates occupying any of its ids.
		sharers [][]int
	}
)

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) set(i int) { b[i/64] |= 1 << (uint(i) % 64) }

func (b bitset) clear(i int) { b[i/64] &^= 1 << (uint(i) % 64) }

func (b bitset) clone() bitset { return slices.Clone(b) }

// or merges o into b.
func (b bitset) or(o bitset) {
	for i := range o {
		b[i] |= o[i]
	}
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) list() []int {
	out := make([]int, 0, b.count())
	for wi, w := range b {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			out = append(out, wi*64+bit)
			w &^= 1 << uint(bit)
		}
	}
	return out
}

func newProblem(g *modgraph.Graph) *problem {
	cands := g.Candidates()
	p := &problem{
		graph:   g,
		cands:   cands,
		nodeOf:  make([]int, len(cands)),
		parent:  make([]int, len(cands)),
		reqOf:   make([][]int, len(cands)),
		negOf:   make([][]int, len(cands)),
		negInto: make([][]int, len(cands)),
		sharers: make([][]int, len(cands)),
	}

	index := make(map[*modgraph.Candidate]int, len(cands))
	for i, c := range cands {
		index[c] = i
	}
	p.index = index

	nodeIndex := make(map[string]int)
	for _, id := range g.IDs() {
		n := node{id: id}
		for _, c := range g.CandidatesFor(id) {
			i := index[c]
			n.members = append(n.members, i)
			if !c.IsNested() {
				n.mandatory = true
			}
			n.builtin = n.builtin || c.IsBuiltin()
		}
		for _, o := range g.Providers(id) {
			if o.ID() != id {
				n.aliases = append(n.aliases, index[o])
			}
		}
		nodeIndex[id] = len(p.nodes)
		p.nodes = append(p.nodes, n)
	}

	for i, c := range cands {
		p.nodeOf[i] = nodeIndex[c.ID()]
		p.parent[i] = -1
		if par := c.Parent(); par != nil {
			p.parent[i] = index[par]
		}

		for _, d := range c.Dependencies() {
			if d.Kind.IsSoft() {
				continue
			}
			e := edge{from: i, dep: d}
			for _, m := range g.Matching(d) {
				mi := index[m]
				// A candidate never conflicts with itself.
				if d.Kind.IsNegative() && mi == i {
					continue
				}
				e.matches = append(e.matches, mi)
			}
			id := len(p.edges)
			p.edges = append(p.edges, e)
			if d.Kind == modgraph.Requires {
				p.reqOf[i] = append(p.reqOf[i], id)
				continue
			}
			p.negOf[i] = append(p.negOf[i], id)
			for _, mi := range e.matches {
				p.negInto[mi] = append(p.negInto[mi], id)
			}
		}

		seen := map[int]bool{i: true}
		for _, id := range c.Occupied() {
			for _, o := range g.Providers(id) {
				oi := index[o]
				if !seen[oi] {
					seen[oi] = true
					p.sharers[i] = append(p.sharers[i], oi)
				}
			}
		}
		slices.Sort(p.sharers[i])
	}
	return p
}

// mustSelect reports whether the node can only be satisfied by one of its
// own members.
func (n node) mustSelect() bool {
	return n.mandatory && (n.builtin || len(n.aliases) == 0)
}

// allEdges returns the set containing every edge id.
func (p *problem) allEdges() bitset {
	b := newBitset(len(p.edges))
	for i := range p.edges {
		b.set(i)
	}
	return b
}
