// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modsolve/modsolve/pkg/modgraph"
)

const (
	// Unsatisfiable means no selection satisfies every hard constraint.
	Unsatisfiable FailureKind = iota
	// TimedOut means the deadline passed before the search finished.
	TimedOut
	// SearchLimitReached means MaxSteps was exhausted.
	SearchLimitReached
	// ActivationCycle means a valid selection was found but its REQUIRES
	// edges form a cycle, so no activation order exists.
	ActivationCycle
	// Canceled means the caller's context was canceled during the search.
	Canceled
)

var (
	// ErrUnsatisfiable is wrapped by failures of kind Unsatisfiable.
	ErrUnsatisfiable = errors.New("module constraints cannot be satisfied")
	// ErrTimedOut is wrapped by failures of kind TimedOut.
	ErrTimedOut = errors.New("resolution timed out")
	// ErrSearchLimit is wrapped by failures of kind SearchLimitReached.
	ErrSearchLimit = errors.New("resolution search limit reached")
	// ErrActivationCycle is wrapped by failures of kind ActivationCycle.
	ErrActivationCycle = errors.New("selected modules have no activation order")
	// ErrCanceled is wrapped by failures of kind Canceled. It matches
	// context.Canceled.
	ErrCanceled = fmt.Errorf("resolution canceled: %w", context.Canceled)
)

type (
	// FailureKind classifies a Failure.
	FailureKind int

	// Failure is the error returned when resolution does not produce a Result.
	Failure struct {
		Kind FailureKind
		// Conflicts explains an Unsatisfiable failure. Each entry cites a
		// concrete candidate and edge.
		Conflicts []Conflict
		// Selection holds the valid selection of an ActivationCycle failure.
		Selection []*modgraph.Candidate
		// Cycle is the closed REQUIRES path of an ActivationCycle failure.
		Cycle    []*modgraph.Candidate
		Warnings []modgraph.Warning
		Stats    Stats
	}
)

// String returns a short name for the kind.
func (k FailureKind) String() string {
	switch k {
	case Unsatisfiable:
		return "unsatisfiable"
	case TimedOut:
		return "timed_out"
	case SearchLimitReached:
		return "search_limit"
	case ActivationCycle:
		return "activation_cycle"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error renders the sentinel message followed by one line per conflict.
func (f *Failure) Error() string {
	var sb strings.Builder
	sb.WriteString(f.Unwrap().Error())
	switch f.Kind {
	case Unsatisfiable:
		for _, c := range f.Conflicts {
			sb.WriteString("\n  - ")
			sb.WriteString(c.Message())
		}
	case ActivationCycle:
		parts := make([]string, len(f.Cycle))
		for i, c := range f.Cycle {
			parts[i] = c.String()
		}
		fmt.Fprintf(&sb, ": %s", strings.Join(parts, " -> "))
	case TimedOut, SearchLimitReached, Canceled:
		fmt.Fprintf(&sb, " after %d steps", f.Stats.Steps)
	}
	return sb.String()
}

// Unwrap returns the sentinel matching Kind.
func (f *Failure) Unwrap() error {
	switch f.Kind {
	case TimedOut:
		return ErrTimedOut
	case SearchLimitReached:
		return ErrSearchLimit
	case ActivationCycle:
		return ErrActivationCycle
	case Canceled:
		return ErrCanceled
	default:
		return ErrUnsatisfiable
	}
}
