// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modsolve/modsolve/pkg/version"
)

func newVersionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the modsolve version or work with module versions",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(app.stdout, "modsolve "+getVersionString())
		},
	}
	cmd.AddCommand(newVersionCheckCommand(app))
	return cmd
}

func newVersionCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <version> <range>...",
		Short: "Test whether a version satisfies any of the given ranges",
		Long: `Test whether a version satisfies any of the given ranges.

Each range is a space-separated list of predicates that must all hold; the
version matches when at least one range does. The command exits with status
2 when the version does not match.`,
		Example: `  modsolve version check 1.4.2 "^1.2"
  modsolve version check 2.0.0-beta.1 ">=2.0 <3" "1.x"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.checkVersion(args[0], args[1:])
		},
	}
}

func (a *App) checkVersion(raw string, ranges []string) error {
	v, err := version.Parse(raw)
	if err != nil {
		return a.fail(ExitUsage, invalidVersion("version", err), false)
	}
	rs, err := version.ParseRanges(ranges)
	if err != nil {
		return a.fail(ExitUsage, invalidVersion("range", err), false)
	}

	if rs.Test(v) {
		fmt.Fprintf(a.stdout, "%s %s satisfies %s\n", SuccessStyle.Render("✓"), v, rs)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s %s does not satisfy %s\n", ErrorStyle.Render("✗"), v, rs)
	return &ExitError{Code: ExitResolution}
}
