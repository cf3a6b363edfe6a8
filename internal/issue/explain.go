// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"
	"strings"

	"github.com/modsolve/modsolve/pkg/resolve"
)

// IdFor maps a resolution failure to its catalog entry.
func IdFor(f *resolve.Failure) Id {
	switch f.Kind {
	case resolve.TimedOut:
		return ResolutionTimedOutId
	case resolve.SearchLimitReached:
		return SearchLimitReachedId
	case resolve.ActivationCycle:
		return ActivationCycleId
	case resolve.Canceled:
		return ResolutionCanceledId
	default:
		return ResolutionFailedId
	}
}

// Explain renders f as markdown: one numbered entry per conflict with the
// chain that pulled its source in, followed by the catalog advice.
func Explain(f *resolve.Failure) MarkdownMsg {
	var sb strings.Builder

	switch f.Kind {
	case resolve.Unsatisfiable:
		sb.WriteString("# Resolution failed\n\n")
		fmt.Fprintf(&sb, "%d %s %s the selection:\n\n",
			len(f.Conflicts), plural(len(f.Conflicts), "constraint", "constraints"),
			plural(len(f.Conflicts), "blocks", "block"))
		for i, c := range f.Conflicts {
			fmt.Fprintf(&sb, "%d. **%s**: %s\n", i+1, c.Reason, c.Message())
			if len(c.Chain) > 1 {
				fmt.Fprintf(&sb, "   - pulled in by `%s`\n", c.ChainString())
			}
		}
	case resolve.ActivationCycle:
		sb.WriteString("# Activation cycle\n\n")
		parts := make([]string, len(f.Cycle))
		for i, c := range f.Cycle {
			parts[i] = c.String()
		}
		fmt.Fprintf(&sb, "`%s`\n\n", strings.Join(parts, " -> "))
		sb.WriteString("Selected modules:\n\n")
		for _, c := range f.Selection {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	default:
		fmt.Fprintf(&sb, "# Resolution stopped\n\n%s.\n", f.Error())
	}

	fmt.Fprintf(&sb, "\n*%d steps, %d backtracks*\n", f.Stats.Steps, f.Stats.Backtracks)

	if i := Get(IdFor(f)); i != nil {
		if _, advice, ok := strings.Cut(string(i.MarkdownMsg()), "## Things you can try:"); ok {
			sb.WriteString("\n## Things you can try:")
			sb.WriteString(advice)
			sb.WriteString("\n")
		}
	}
	return MarkdownMsg(sb.String())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
