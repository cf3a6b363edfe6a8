// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"slices"
)

var errAborted = errors.New("search aborted")

type (
	// solver runs one backtracking search over a problem with a subset of
	// edges switched on. Structural rules (one candidate per id, nesting,
	// mandatory ids) always apply.
	solver struct {
		ctx      context.Context
		prob     *problem
		active   bitset
		policy   TieBreak
		stats    *Stats
		maxSteps int
		// abort records why the search stopped early.
		abort FailureKind
	}
)

// solve runs the search. It returns the final state on success, or the
// conflicting edges on failure. errAborted means a limit was hit; s.abort
// tells which.
func (s *solver) solve() (*state, bitset, error) {
	return s.search(s.initialState())
}

func (s *solver) search(st *state) (*state, bitset, error) {
	s.stats.Steps++
	if s.stats.Steps > s.maxSteps {
		s.abort = SearchLimitReached
		return nil, nil, errAborted
	}
	if err := s.ctx.Err(); err != nil {
		s.abort = TimedOut
		if errors.Is(err, context.Canceled) {
			s.abort = Canceled
		}
		return nil, nil, errAborted
	}

	if con := s.propagate(st); con != nil {
		return nil, con.edges, nil
	}

	n := slices.Index(st.decided, undecided)
	if n < 0 {
		return st, nil, nil
	}

	// Removals already made at this point constrain every option.
	conflict := s.nodeWhy(st, n, -1)
	for _, opt := range s.options(st, n) {
		child := st.clone()
		if con := s.decide(child, n, opt, s.empty()); con != nil {
			conflict.or(con.edges)
			s.stats.Backtracks++
			continue
		}
		sol, edges, err := s.search(child)
		if err != nil || sol != nil {
			return sol, nil, err
		}
		conflict.or(edges)
		s.stats.Backtracks++
	}
	return nil, conflict, nil
}

// options lists the remaining alternatives of node n in preference order,
// with absence last when allowed.
func (s *solver) options(st *state, n int) []int {
	p := s.prob
	var opts []int
	for _, m := range p.nodes[n].members {
		if st.alive[m] {
			opts = append(opts, m)
		}
	}
	slices.SortStableFunc(opts, func(a, b int) int {
		va, vb := p.cands[a].Version(), p.cands[b].Version()
		if s.policy == PreferFirstDiscovered {
			return a - b
		}
		if c := vb.Compare(va); c != 0 {
			return c
		}
		return a - b
	})
	if st.absentOK[n] {
		opts = append(opts, absent)
	}
	return opts
}

// minimize shrinks a conflicting edge set by deletion: an edge is dropped
// when the remaining edges are still unsatisfiable on their own. A limit hit
// during minimization keeps the set reached so far.
func (s *solver) minimize(core bitset) bitset {
	unsat, err := s.unsatWith(core)
	if err != nil {
		return core
	}
	if !unsat {
		// The tracked set does not explain the failure alone; start from
		// every edge instead.
		core = s.prob.allEdges()
	}

	for _, e := range core.list() {
		trial := core.clone()
		trial.clear(e)
		s.stats.MinimizeSolves++
		unsat, err := s.unsatWith(trial)
		if err != nil {
			return core
		}
		if unsat {
			core = trial
		}
	}
	return core
}

// unsatWith reports whether the problem is unsatisfiable with only the
// given edges active.
func (s *solver) unsatWith(edges bitset) (bool, error) {
	sub := *s
	sub.active = edges
	sol, _, err := sub.solve()
	s.abort = sub.abort
	if err != nil {
		return false, err
	}
	return sol == nil, nil
}
