// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/internal/issue"
	"github.com/modsolve/modsolve/pkg/descriptor"
)

func newValidateCommand(app *App, root *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate the descriptor of one module directory or archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.validate(args[0], root.verbose)
		},
	}
}

func (a *App) validate(path string, verbose bool) error {
	fsys, closer, err := discovery.DiskLocation(path).Open()
	if err != nil {
		return a.fail(ExitUsage, issue.NewErrorContext().
			WithOperation("open module").
			WithResource(path).
			WithSuggestion("Pass a module directory or a .zip/.jar archive").
			Wrap(err).
			BuildError(), verbose)
	}
	defer closer.Close()

	desc, err := descriptor.Load(fsys)
	if err != nil {
		ctx := issue.NewErrorContext().
			WithOperation("validate module").
			WithResource(path).
			Wrap(err)
		if errors.Is(err, descriptor.ErrNoDescriptor) {
			ctx = ctx.WithSuggestion("Add a mod.cue, mod.json or mod.toml file")
		} else {
			ctx = ctx.WithIssue(issue.DescriptorInvalidId)
		}
		return a.fail(ExitUsage, ctx.BuildError(), verbose)
	}

	renderDescriptor(a.stdout, desc, verbose)
	return nil
}

func renderDescriptor(w io.Writer, d *descriptor.Descriptor, verbose bool) {
	fmt.Fprintf(w, "%s %s %s %s\n", SuccessStyle.Render("✓"), ModuleStyle.Render(d.ID), d.Version,
		VerboseStyle.Render("("+d.File+")"))
	if !verbose {
		return
	}
	if d.Name != "" {
		fmt.Fprintf(w, "  name: %s\n", d.Name)
	}
	fmt.Fprintf(w, "  environment: %s\n", d.Environment)
	for _, rel := range []struct {
		name string
		cs   []descriptor.Constraint
	}{
		{"depends", d.Depends},
		{"recommends", d.Recommends},
		{"suggests", d.Suggests},
		{"conflicts", d.Conflicts},
		{"breaks", d.Breaks},
	} {
		if len(rel.cs) == 0 {
			continue
		}
		parts := make([]string, len(rel.cs))
		for i, c := range rel.cs {
			parts[i] = c.String()
		}
		fmt.Fprintf(w, "  %s: %s\n", rel.name, strings.Join(parts, ", "))
	}
	if len(d.Provides) > 0 {
		fmt.Fprintf(w, "  provides: %s\n", strings.Join(d.Provides, ", "))
	}
	if len(d.Nested) > 0 {
		fmt.Fprintf(w, "  nested: %s\n", strings.Join(d.Nested, ", "))
	}
}
