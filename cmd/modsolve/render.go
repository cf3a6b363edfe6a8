// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/engine"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/resolve"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func candidateLine(c *modgraph.Candidate) string {
	line := ModuleStyle.Render(c.ID()) + " " + c.Version().String()
	if c.IsBuiltin() {
		return line + VerboseStyle.Render(" (builtin)")
	}
	return line + VerboseStyle.Render("  "+c.Location())
}

// renderReport writes the human readable form of rep.
func renderReport(w io.Writer, rep *engine.Report, verbose bool) {
	if rep.Discovery != nil {
		renderDiagnostics(w, rep.Discovery.Diagnostics, verbose)
	}
	if rep.Graph != nil {
		for _, warn := range rep.Graph.Warnings() {
			fmt.Fprintln(w, WarningStyle.Render("! "+warn.Message))
		}
	}

	switch {
	case rep.Result != nil:
		renderResult(w, rep.Result, verbose)
	case rep.Failure != nil:
		renderFailure(w, rep.Failure)
	}
}

func renderResult(w io.Writer, res *resolve.Result, verbose bool) {
	order := res.ActivationOrder()
	stats := res.Stats()
	fmt.Fprintf(w, "%s %d modules %s\n",
		SuccessStyle.Render("✓ Resolved"), len(order),
		VerboseStyle.Render(fmt.Sprintf("(%d steps, %d backtracks, %s)", stats.Steps, stats.Backtracks, stats.Elapsed.Round(time.Microsecond))))

	fmt.Fprintln(w, sectionStyle.Render("Activation order"))
	for i, c := range order {
		if c.IsBuiltin() && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %2d. %s\n", i+1, candidateLine(c))
	}

	renderUnmet(w, "Missing recommendations", res.UnmetRecommendations(), "recommends")
	if verbose {
		renderUnmet(w, "Missing suggestions", res.UnmetSuggestions(), "suggests")
	}
}

func renderUnmet(w io.Writer, title string, unmet []resolve.Unmet, verb string) {
	if len(unmet) == 0 {
		return
	}
	fmt.Fprintln(w, sectionStyle.Render(title))
	for _, u := range unmet {
		line := fmt.Sprintf("  ! %s %s %s", u.Candidate, verb, u.Dependency)
		if len(u.Present) > 0 {
			present := make([]string, len(u.Present))
			for i, p := range u.Present {
				present[i] = p.String()
			}
			line += VerboseStyle.Render(" (found " + strings.Join(present, ", ") + ")")
		}
		fmt.Fprintln(w, WarningStyle.Render(line))
	}
}

func renderFailure(w io.Writer, f *resolve.Failure) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("✗ Resolution failed:"), f.Kind)
	switch f.Kind {
	case resolve.Unsatisfiable:
		for i, c := range f.Conflicts {
			fmt.Fprintf(w, "  %d. %s %s\n", i+1, VerboseStyle.Render("["+c.Reason.String()+"]"), c.Message())
			if len(c.Chain) > 1 {
				fmt.Fprintf(w, "     %s\n", VerboseStyle.Render("via "+c.ChainString()))
			}
		}
	case resolve.ActivationCycle:
		parts := make([]string, len(f.Cycle))
		for i, c := range f.Cycle {
			parts[i] = c.String()
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " -> "))
	case resolve.Canceled:
		fmt.Fprintf(w, "  %s\n", VerboseStyle.Render(fmt.Sprintf("interrupted after %d steps", f.Stats.Steps)))
	default:
		fmt.Fprintf(w, "  %s\n", VerboseStyle.Render(fmt.Sprintf("gave up after %d steps", f.Stats.Steps)))
	}
	fmt.Fprintln(w, SubtitleStyle.Render("\nRun 'modsolve resolve --explain' for suggestions."))
}

// renderDiagnostics prints errors always and warnings in verbose mode.
func renderDiagnostics(w io.Writer, diags []discovery.Diagnostic, verbose bool) {
	var hidden int
	for _, d := range diags {
		switch {
		case d.Severity == discovery.SeverityError:
			fmt.Fprintln(w, ErrorStyle.Render("✗ ")+d.String())
		case verbose:
			fmt.Fprintln(w, WarningStyle.Render("! ")+d.String())
		default:
			hidden++
		}
	}
	if hidden > 0 {
		fmt.Fprintln(w, VerboseStyle.Render(fmt.Sprintf("%d discovery warnings hidden, use --verbose to show them", hidden)))
	}
}
