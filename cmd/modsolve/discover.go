// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/engine"
)

type (
	discoverFlagValues struct {
		sourceFlags
		format string
	}

	nonModuleView struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}

	excludedView struct {
		Path        string `json:"path"`
		ID          string `json:"id"`
		Version     string `json:"version"`
		Environment string `json:"environment"`
	}

	discoverView struct {
		Candidates  []engine.CandidateView  `json:"candidates"`
		NonModules  []nonModuleView         `json:"non_modules,omitempty"`
		Excluded    []excludedView          `json:"excluded,omitempty"`
		Diagnostics []engine.DiagnosticView `json:"diagnostics,omitempty"`
	}
)

func newDiscoverCommand(app *App, root *rootFlagValues) *cobra.Command {
	flags := &discoverFlagValues{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the module candidates discovery finds, without resolving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), app, root, flags)
		},
	}
	addSourceFlags(cmd, &flags.sourceFlags)
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text or json")
	return cmd
}

func runDiscover(ctx context.Context, app *App, root *rootFlagValues, flags *discoverFlagValues) error {
	if flags.format != formatText && flags.format != formatJSON {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("unknown format %q (expected text or json)", flags.format)}
	}
	cfg, err := app.loadConfig(ctx, root)
	if err != nil {
		return err
	}
	rc, err := newResolutionContext(cfg, flags.sourceFlags, app.logger(root))
	if err != nil {
		return app.fail(ExitUsage, err, root.verbose)
	}

	res, err := engine.Discover(ctx, rc)
	if res != nil {
		if flags.format == formatJSON {
			if outErr := writeJSON(app.stdout, newDiscoverView(res)); outErr != nil {
				return outErr
			}
		} else {
			renderDiscovery(app.stdout, res, root.verbose)
		}
	}
	return app.classify(err, root.verbose)
}

func newDiscoverView(res *discovery.Result) discoverView {
	v := discoverView{Candidates: []engine.CandidateView{}}
	for _, c := range res.Candidates {
		v.Candidates = append(v.Candidates, engine.NewCandidateView(c))
	}
	for _, nm := range res.NonModules {
		v.NonModules = append(v.NonModules, nonModuleView{Path: nm.Path, Error: errString(nm.Err)})
	}
	for _, ex := range res.Excluded {
		v.Excluded = append(v.Excluded, excludedView{
			Path:        ex.Path,
			ID:          ex.ID,
			Version:     ex.Version.String(),
			Environment: ex.Environment.String(),
		})
	}
	for _, d := range res.Diagnostics {
		v.Diagnostics = append(v.Diagnostics, engine.DiagnosticView{
			Severity: string(d.Severity),
			Code:     d.Code.String(),
			Path:     d.Path,
			Message:  d.Message,
		})
	}
	return v
}

func renderDiscovery(w io.Writer, res *discovery.Result, verbose bool) {
	renderDiagnostics(w, res.Diagnostics, verbose)

	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Candidates (%d)", len(res.Candidates))))
	for _, c := range res.Candidates {
		if c.IsBuiltin() && !verbose {
			continue
		}
		indent := "  "
		for range c.Depth() {
			indent += "  "
		}
		fmt.Fprintln(w, indent+candidateLine(c))
	}

	if len(res.Excluded) > 0 {
		fmt.Fprintln(w, sectionStyle.Render(fmt.Sprintf("Excluded by environment (%d)", len(res.Excluded))))
		for _, ex := range res.Excluded {
			fmt.Fprintf(w, "  %s %s %s\n", ModuleStyle.Render(ex.ID), ex.Version,
				VerboseStyle.Render("("+ex.Environment.String()+")  "+ex.Path))
		}
	}

	if len(res.NonModules) > 0 {
		if !verbose {
			fmt.Fprintln(w, VerboseStyle.Render(fmt.Sprintf("%d locations are not modules (use --verbose to list them)", len(res.NonModules))))
			return
		}
		fmt.Fprintln(w, sectionStyle.Render(fmt.Sprintf("Not modules (%d)", len(res.NonModules))))
		for _, nm := range res.NonModules {
			fmt.Fprintf(w, "  %s %s\n", nm.Path, VerboseStyle.Render(errString(nm.Err)))
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
