// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// PreferNewest tries the highest version of an id first, then the
	// earliest discovered.
	PreferNewest TieBreak = "newest"
	// PreferFirstDiscovered tries the earliest discovered candidate first,
	// then the highest version.
	PreferFirstDiscovered TieBreak = "first_discovered"

	// DefaultMaxSteps bounds the number of search nodes visited.
	DefaultMaxSteps = 1_000_000
)

type (
	// TieBreak selects the order in which alternatives for an id are tried.
	TieBreak string

	// Options configures a Resolver. The zero value is usable.
	Options struct {
		// TieBreak defaults to PreferNewest.
		TieBreak TieBreak
		// Timeout aborts the search with ErrTimedOut. Zero means no timeout
		// beyond the caller's context.
		Timeout time.Duration
		// MaxSteps aborts the search with ErrSearchLimit. Zero means DefaultMaxSteps.
		MaxSteps int
		// SkipMinimize reports the conflicting edges found by the search
		// without shrinking them to a minimal set.
		SkipMinimize bool
		// Logger receives debug output. Nil discards it.
		Logger *log.Logger
	}
)

// ParseTieBreak validates a tie-break policy name. Empty means PreferNewest.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", PreferNewest:
		return PreferNewest, nil
	case PreferFirstDiscovered:
		return PreferFirstDiscovered, nil
	}
	return "", fmt.Errorf("unknown tie-break policy %q (expected %s or %s)", s, PreferNewest, PreferFirstDiscovered)
}

func (o Options) withDefaults() Options {
	if o.TieBreak == "" {
		o.TieBreak = PreferNewest
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}
