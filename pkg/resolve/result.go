// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"slices"
	"time"

	"github.com/modsolve/modsolve/pkg/modgraph"
)

type (
	// Unmet is a soft dependency of a selected candidate that no selected
	// candidate satisfies.
	Unmet struct {
		Candidate  *modgraph.Candidate
		Dependency modgraph.Dependency
		// Present lists selected candidates occupying the target id whose
		// version falls outside the ranges.
		Present []*modgraph.Candidate
	}

	// Stats describes the work done by one Resolve call.
	Stats struct {
		// Steps counts search nodes visited, including minimization.
		Steps int
		// Backtracks counts abandoned branches.
		Backtracks int
		// MinimizeSolves counts the extra solves spent shrinking a conflict.
		MinimizeSolves int
		Elapsed        time.Duration
	}

	// Result is a successful resolution. It is read-only: every accessor
	// returns a fresh slice.
	Result struct {
		selected   []*modgraph.Candidate
		activation []*modgraph.Candidate
		byID       map[string]*modgraph.Candidate
		recommends []Unmet
		suggests   []Unmet
		warnings   []modgraph.Warning
		stats      Stats
	}
)

// Selected returns the chosen candidates in discovery order.
func (r *Result) Selected() []*modgraph.Candidate { return slices.Clone(r.selected) }

// ActivationOrder returns the chosen candidates with every candidate after
// the ones it requires; ties follow discovery order.
func (r *Result) ActivationOrder() []*modgraph.Candidate { return slices.Clone(r.activation) }

// Lookup returns the selected candidate occupying id, or nil.
func (r *Result) Lookup(id string) *modgraph.Candidate { return r.byID[id] }

// IsSelected reports whether c is part of the selection.
func (r *Result) IsSelected(c *modgraph.Candidate) bool { return slices.Contains(r.selected, c) }

// UnmetRecommendations returns recommendations no selected module satisfies.
func (r *Result) UnmetRecommendations() []Unmet { return slices.Clone(r.recommends) }

// UnmetSuggestions returns suggestions no selected module satisfies.
func (r *Result) UnmetSuggestions() []Unmet { return slices.Clone(r.suggests) }

// Warnings returns the graph warnings, such as duplicate modules.
func (r *Result) Warnings() []modgraph.Warning { return slices.Clone(r.warnings) }

// Stats returns search statistics.
func (r *Result) Stats() Stats { return r.stats }
