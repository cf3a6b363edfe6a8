// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/modsolve/modsolve/internal/dag"
	"github.com/modsolve/modsolve/pkg/modgraph"
)

// Resolver selects one candidate per module id. It holds no state between
// calls and is safe for concurrent use.
type Resolver struct {
	opts Options
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts.withDefaults()}
}

// Resolve searches for a selection satisfying every hard constraint of g.
// On failure the error is a *Failure wrapping ErrUnsatisfiable, ErrTimedOut,
// ErrSearchLimit, ErrActivationCycle or ErrCanceled. A deadline on ctx is
// reported as ErrTimedOut; cancellation as ErrCanceled.
func (r *Resolver) Resolve(ctx context.Context, g *modgraph.Graph) (*Result, error) {
	start := time.Now()
	logger := r.opts.Logger

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	prob := newProblem(g)
	stats := &Stats{}
	s := &solver{
		ctx:      ctx,
		prob:     prob,
		active:   prob.allEdges(),
		policy:   r.opts.TieBreak,
		stats:    stats,
		maxSteps: r.opts.MaxSteps,
	}

	logger.Debug("resolving", "candidates", g.Len(), "ids", len(prob.nodes), "edges", len(prob.edges), "tie_break", s.policy)

	final, conflict, err := s.solve()
	if err != nil {
		stats.Elapsed = time.Since(start)
		logger.Debug("resolution aborted", "kind", s.abort, "steps", stats.Steps, "elapsed", stats.Elapsed)
		return nil, &Failure{Kind: s.abort, Warnings: g.Warnings(), Stats: *stats}
	}

	if final == nil {
		core := conflict
		if !r.opts.SkipMinimize {
			core = s.minimize(conflict)
		}
		stats.Elapsed = time.Since(start)
		conflicts := prob.explain(core)
		logger.Debug("resolution failed", "conflicts", len(conflicts), "steps", stats.Steps,
			"backtracks", stats.Backtracks, "elapsed", stats.Elapsed)
		return nil, &Failure{Kind: Unsatisfiable, Conflicts: conflicts, Warnings: g.Warnings(), Stats: *stats}
	}

	res := buildResult(prob, final)
	res.warnings = g.Warnings()

	order, cycle := activationOrder(prob, res.selected)
	stats.Elapsed = time.Since(start)
	if cycle != nil {
		logger.Debug("activation cycle", "length", len(cycle))
		return nil, &Failure{
			Kind:      ActivationCycle,
			Selection: res.Selected(),
			Cycle:     cycle,
			Warnings:  res.warnings,
			Stats:     *stats,
		}
	}
	res.activation = order
	res.stats = *stats

	logger.Debug("resolved", "selected", len(res.selected), "steps", stats.Steps,
		"backtracks", stats.Backtracks, "elapsed", stats.Elapsed)
	return res, nil
}

func buildResult(p *problem, st *state) *Result {
	res := &Result{byID: make(map[string]*modgraph.Candidate)}
	for i, c := range p.cands {
		if !st.alive[i] || st.decided[p.nodeOf[i]] != i {
			continue
		}
		res.selected = append(res.selected, c)
		for _, id := range c.Occupied() {
			res.byID[id] = c
		}
	}

	for _, c := range res.selected {
		for _, d := range c.Dependencies() {
			if !d.Kind.IsSoft() {
				continue
			}
			holder := res.byID[d.Target]
			if holder != nil && d.Ranges.Test(holder.Version()) {
				continue
			}
			u := Unmet{Candidate: c, Dependency: d}
			if holder != nil {
				u.Present = []*modgraph.Candidate{holder}
			}
			if d.Kind == modgraph.Recommends {
				res.recommends = append(res.recommends, u)
			} else {
				res.suggests = append(res.suggests, u)
			}
		}
	}
	return res
}

// activationOrder sorts the selection so that every candidate follows the
// candidates satisfying its requirements. It returns the closed cycle when
// no such order exists.
func activationOrder(p *problem, selected []*modgraph.Candidate) ([]*modgraph.Candidate, []*modgraph.Candidate) {
	g := dag.New[*modgraph.Candidate]()
	for _, c := range selected {
		g.AddNode(c)
	}
	chosen := make(map[*modgraph.Candidate]bool, len(selected))
	for _, c := range selected {
		chosen[c] = true
	}
	for _, c := range selected {
		for _, e := range p.reqOf[p.index[c]] {
			for _, m := range p.edges[e].matches {
				if dep := p.cands[m]; chosen[dep] {
					g.AddEdge(dep, c)
				}
			}
		}
	}

	order, err := g.TopologicalSort()
	var cycleErr *dag.CycleError[*modgraph.Candidate]
	if errors.As(err, &cycleErr) {
		return nil, cycleErr.Cycle
	}
	return order, nil
}
