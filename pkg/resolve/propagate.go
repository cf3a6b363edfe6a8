// SPDX-License-Identifier: MPL-2.0

package resolve

import "slices"

const (
	undecided = -2
	absent    = -1
)

type (
	// state is one point of the search. Every removed candidate and every
	// forced decision carries the set of edges that justify it; choices made
	// by branching carry an empty set.
	state struct {
		alive     []bool
		why       []bitset
		decided   []int
		decWhy    []bitset
		absentOK  []bool
		absentWhy []bitset
	}

	// contradiction is raised by propagation with the edges that produced it.
	contradiction struct {
		edges bitset
	}
)

func (s *solver) initialState() *state {
	p := s.prob
	st := &state{
		alive:     make([]bool, len(p.cands)),
		why:       make([]bitset, len(p.cands)),
		decided:   make([]int, len(p.nodes)),
		decWhy:    make([]bitset, len(p.nodes)),
		absentOK:  make([]bool, len(p.nodes)),
		absentWhy: make([]bitset, len(p.nodes)),
	}
	for i := range st.alive {
		st.alive[i] = true
	}
	for n := range p.nodes {
		st.decided[n] = undecided
		st.absentOK[n] = !p.nodes[n].mustSelect()
	}
	return st
}

// clone copies the state. Bitsets are never mutated after being stored, so
// they are shared.
func (st *state) clone() *state {
	return &state{
		alive:     slices.Clone(st.alive),
		why:       slices.Clone(st.why),
		decided:   slices.Clone(st.decided),
		decWhy:    slices.Clone(st.decWhy),
		absentOK:  slices.Clone(st.absentOK),
		absentWhy: slices.Clone(st.absentWhy),
	}
}

func (s *solver) empty() bitset { return newBitset(len(s.prob.edges)) }

// union builds a fresh set from the given parts; nil parts are skipped.
func (s *solver) union(parts ...bitset) bitset {
	out := s.empty()
	for _, p := range parts {
		if p != nil {
			out.or(p)
		}
	}
	return out
}

// kill removes candidate c with the given justification. Removing a decided
// candidate is a contradiction.
func (s *solver) kill(st *state, c int, why bitset) (bool, *contradiction) {
	if !st.alive[c] {
		return false, nil
	}
	st.alive[c] = false
	st.why[c] = why
	n := s.prob.nodeOf[c]
	if st.decided[n] == c {
		return true, &contradiction{edges: s.union(why, st.decWhy[n])}
	}
	return true, nil
}

// decide fixes node n to candidate c (or absent) and removes the other members.
func (s *solver) decide(st *state, n, c int, why bitset) *contradiction {
	st.decided[n] = c
	st.decWhy[n] = why
	for _, m := range s.prob.nodes[n].members {
		if m == c {
			continue
		}
		if _, con := s.kill(st, m, why); con != nil {
			return con
		}
	}
	return nil
}

// forbidAbsent records that node n must select a member.
func forbidAbsent(st *state, n int, why bitset) bool {
	if !st.absentOK[n] {
		return false
	}
	st.absentOK[n] = false
	st.absentWhy[n] = why
	return true
}

// propagate applies the constraint rules until nothing changes.
func (s *solver) propagate(st *state) *contradiction {
	p := s.prob
	for {
		changed := false

		// Nodes left with a single option are forced.
		for n, nd := range p.nodes {
			if st.decided[n] != undecided {
				continue
			}
			var alive []int
			for _, m := range nd.members {
				if st.alive[m] {
					alive = append(alive, m)
				}
			}
			switch {
			case len(alive) == 0 && !st.absentOK[n]:
				return &contradiction{edges: s.nodeWhy(st, n, -1)}
			case len(alive) == 0:
				if con := s.decide(st, n, absent, s.nodeWhy(st, n, -1)); con != nil {
					return con
				}
				changed = true
			case len(alive) == 1 && !st.absentOK[n]:
				if con := s.decide(st, n, alive[0], s.nodeWhy(st, n, alive[0])); con != nil {
					return con
				}
				changed = true
			}
		}

		for c := range p.cands {
			if !st.alive[c] {
				continue
			}

			// A nested candidate needs its parent.
			if par := p.parent[c]; par >= 0 && !st.alive[par] {
				ch, con := s.kill(st, c, st.why[par])
				if con != nil {
					return con
				}
				changed = changed || ch
				continue
			}

			// A requirement without any remaining match rules the candidate out.
			for _, e := range p.reqOf[c] {
				if !s.active.has(e) {
					continue
				}
				if s.aliveMatches(st, e) > 0 {
					continue
				}
				ch, con := s.kill(st, c, s.deadMatchWhy(st, e))
				if con != nil {
					return con
				}
				changed = changed || ch
				break
			}
		}

		for n := range p.nodes {
			c := st.decided[n]
			if c < 0 {
				continue
			}
			ch, con := s.propagateDecided(st, n, c)
			if con != nil {
				return con
			}
			changed = changed || ch
		}

		for n, nd := range p.nodes {
			if !nd.mandatory || !st.absentOK[n] {
				continue
			}
			ch, con := s.occupy(st, n)
			if con != nil {
				return con
			}
			changed = changed || ch
		}

		if !changed {
			return nil
		}
	}
}

// propagateDecided applies the rules triggered by node n having selected c.
func (s *solver) propagateDecided(st *state, n, c int) (bool, *contradiction) {
	p := s.prob
	changed := false
	dw := st.decWhy[n]

	killAll := func(targets []int, why bitset) *contradiction {
		for _, m := range targets {
			if m == c || !st.alive[m] {
				continue
			}
			ch, con := s.kill(st, m, why)
			if con != nil {
				return con
			}
			changed = changed || ch
		}
		return nil
	}

	// Conflicts declared by c.
	for _, e := range p.negOf[c] {
		if !s.active.has(e) {
			continue
		}
		why := s.union(dw)
		why.set(e)
		if con := killAll(p.edges[e].matches, why); con != nil {
			return changed, con
		}
	}

	// Conflicts declared against c.
	for _, e := range p.negInto[c] {
		if !s.active.has(e) {
			continue
		}
		src := p.edges[e].from
		if src == c || !st.alive[src] {
			continue
		}
		why := s.union(dw)
		why.set(e)
		if con := killAll([]int{src}, why); con != nil {
			return changed, con
		}
	}

	// At most one selected occupant per id.
	if con := killAll(p.sharers[c], dw); con != nil {
		return changed, con
	}

	// A selected nested candidate forces its parent.
	if par := p.parent[c]; par >= 0 {
		pn := p.nodeOf[par]
		if st.decided[pn] == undecided {
			for _, m := range p.nodes[pn].members {
				if m == par || !st.alive[m] {
					continue
				}
				ch, con := s.kill(st, m, dw)
				if con != nil {
					return changed, con
				}
				changed = changed || ch
			}
			changed = forbidAbsent(st, pn, dw) || changed
		}
	}

	// A requirement whose remaining matches all share one undecided node
	// restricts that node to those matches.
	for _, e := range p.reqOf[c] {
		if !s.active.has(e) {
			continue
		}
		target := -1
		single := true
		for _, m := range p.edges[e].matches {
			if !st.alive[m] {
				continue
			}
			if target == -1 {
				target = p.nodeOf[m]
			} else if target != p.nodeOf[m] {
				single = false
				break
			}
		}
		if !single || target < 0 || st.decided[target] != undecided {
			continue
		}
		why := s.union(dw, s.deadMatchWhy(st, e))
		matches := p.edges[e].matches
		for _, m := range p.nodes[target].members {
			if !st.alive[m] || slices.Contains(matches, m) {
				continue
			}
			ch, con := s.kill(st, m, why)
			if con != nil {
				return changed, con
			}
			changed = changed || ch
		}
		changed = forbidAbsent(st, target, why) || changed
	}

	return changed, nil
}

// occupy keeps the id of mandatory node n occupied while n may still be
// left empty: with no live occupant left it fails, and with a single live
// occupant that occupant is forced.
func (s *solver) occupy(st *state, n int) (bool, *contradiction) {
	p := s.prob
	nd := p.nodes[n]
	why := s.empty()
	only, live := -1, 0
	for _, group := range [][]int{nd.members, nd.aliases} {
		for _, m := range group {
			switch {
			case st.alive[m]:
				only = m
				live++
			case st.why[m] != nil:
				why.or(st.why[m])
			}
		}
	}

	switch {
	case live == 0:
		return false, &contradiction{edges: why}
	case live > 1:
		return false, nil
	}

	k := p.nodeOf[only]
	if k == n {
		return forbidAbsent(st, n, why), nil
	}
	if st.decided[k] != undecided {
		return false, nil
	}
	changed := false
	for _, m := range p.nodes[k].members {
		if m == only || !st.alive[m] {
			continue
		}
		ch, con := s.kill(st, m, why)
		if con != nil {
			return changed, con
		}
		changed = changed || ch
	}
	changed = forbidAbsent(st, k, why) || changed
	return changed, nil
}

func (s *solver) aliveMatches(st *state, e int) int {
	n := 0
	for _, m := range s.prob.edges[e].matches {
		if st.alive[m] {
			n++
		}
	}
	return n
}

// deadMatchWhy returns e plus the reasons every dead match of e was removed.
func (s *solver) deadMatchWhy(st *state, e int) bitset {
	why := s.empty()
	why.set(e)
	for _, m := range s.prob.edges[e].matches {
		if !st.alive[m] && st.why[m] != nil {
			why.or(st.why[m])
		}
	}
	return why
}

// nodeWhy collects the reasons of removed members of n (except keep) and,
// when absence is forbidden, the reason for that.
func (s *solver) nodeWhy(st *state, n, keep int) bitset {
	why := s.empty()
	for _, m := range s.prob.nodes[n].members {
		if m != keep && !st.alive[m] && st.why[m] != nil {
			why.or(st.why[m])
		}
	}
	if !st.absentOK[n] && st.absentWhy[n] != nil {
		why.or(st.absentWhy[n])
	}
	return why
}
