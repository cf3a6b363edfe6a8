// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/resolve"
)

// Report describes one pipeline run. Exactly one of Result and Failure is
// set once resolution ran; both are nil when discovery failed fatally.
type Report struct {
	RunID       uuid.UUID
	Started     time.Time
	Environment string

	Discovery *discovery.Result
	Graph     *modgraph.Graph
	Result    *resolve.Result
	Failure   *resolve.Failure

	DiscoveryElapsed time.Duration
	ResolveElapsed   time.Duration
}

// OK reports whether resolution succeeded.
func (r *Report) OK() bool { return r.Result != nil }

// Discover runs only the discovery stage of rc.
func Discover(ctx context.Context, rc *ResolutionContext) (*discovery.Result, error) {
	return discoverer(rc).Discover(ctx)
}

func discoverer(rc *ResolutionContext) *discovery.Discoverer {
	var finders []discovery.Finder
	if rc.ModsDir != "" {
		finders = append(finders, discovery.DirFinder{Dir: rc.ModsDir, Ignore: rc.Ignore})
	}
	if len(rc.Includes) > 0 {
		finders = append(finders, discovery.PathFinder{Paths: rc.Includes})
	}
	finders = append(finders, rc.Finders...)

	return discovery.New(
		discovery.WithFinders(finders...),
		discovery.WithEnvironment(rc.Environment),
		discovery.WithWorkers(rc.Workers),
		discovery.WithMaxNestingDepth(maxDepth(rc.MaxNestingDepth)),
		discovery.WithBuiltins(rc.Builtin()...),
		discovery.WithLogger(rc.logger()),
	)
}

func maxDepth(n int) int {
	if n <= 0 {
		return discovery.DefaultMaxNestingDepth
	}
	return n
}

// Run discovers candidates, builds the graph and resolves it. The report is
// returned whenever discovery produced a result. The error is the
// *discovery.Error of a fatal discovery, the *resolve.Failure of a failed
// resolution, or ctx's error.
func Run(ctx context.Context, rc *ResolutionContext) (*Report, error) {
	rep := &Report{
		RunID:       uuid.New(),
		Started:     time.Now(),
		Environment: rc.Environment.String(),
	}
	logger := rc.logger().With("run", rep.RunID.String())

	res, err := discoverer(rc).Discover(ctx)
	rep.DiscoveryElapsed = time.Since(rep.Started)
	if res != nil {
		rep.Discovery = res
		if rc.Recorder != nil {
			rc.Recorder.ObserveDiscovery(res, rep.DiscoveryElapsed)
		}
		for _, d := range res.Diagnostics {
			logger.Debug("discovery diagnostic", "code", d.Code, "location", d.Path, "message", d.Message)
		}
	}
	if err != nil {
		logger.Error("discovery failed", "error", err)
		if res == nil {
			return nil, err
		}
		return rep, err
	}

	rep.Graph = modgraph.Build(res.Candidates)
	for _, w := range rep.Graph.Warnings() {
		logger.Warn(w.Message, "code", w.Code)
	}

	opts := rc.Resolve
	opts.Logger = logger
	start := time.Now()
	result, err := resolve.New(opts).Resolve(ctx, rep.Graph)
	rep.ResolveElapsed = time.Since(start)

	var failure *resolve.Failure
	switch {
	case err == nil:
		rep.Result = result
		logger.Info("resolved", "selected", len(result.Selected()), "elapsed", rep.ResolveElapsed)
	case errors.As(err, &failure):
		rep.Failure = failure
		logger.Info("resolution failed", "kind", failure.Kind, "conflicts", len(failure.Conflicts))
	default:
		return rep, err
	}

	if rc.Recorder != nil {
		rc.Recorder.ObserveResolution(rep)
	}
	return rep, err
}
