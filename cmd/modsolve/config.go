// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modsolve/modsolve/internal/config"
	"github.com/modsolve/modsolve/internal/issue"
)

func newConfigCommand(app *App, root *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the modsolve configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.showConfig(cmd.Context(), root)
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Print the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := app.loadConfig(cmd.Context(), root)
				if err != nil {
					return err
				}
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default configuration file if none exists",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return app.initConfig(root)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the path of the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				path, err := configPath(root)
				if err != nil {
					return &ExitError{Code: ExitUsage, Err: err}
				}
				fmt.Fprintln(app.stdout, path)
				return nil
			},
		},
	)
	return cmd
}

func configPath(root *rootFlagValues) (string, error) {
	if root.configPath != "" {
		return root.configPath, nil
	}
	return config.DefaultPath()
}

func (a *App) showConfig(ctx context.Context, root *rootFlagValues) error {
	cfg, err := a.loadConfig(ctx, root)
	if err != nil {
		return err
	}
	renderConfig(a.stdout, cfg)
	return nil
}

func renderConfig(w io.Writer, cfg *config.Config) {
	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}
	fmt.Fprintln(w, TitleStyle.Render("Configuration")+" "+VerboseStyle.Render(source))

	row := func(key string, value any) {
		fmt.Fprintf(w, "  %-32s %v\n", key, value)
	}
	row("mods_dir", cfg.ModsDir)
	row("environment", cfg.Environment)
	row("includes", cfg.Includes)
	row("ignore", cfg.Ignore)
	row("discovery.workers", cfg.Discovery.Workers)
	row("discovery.max_nesting_depth", cfg.Discovery.MaxNestingDepth)
	row("resolver.tie_break", cfg.Resolver.TieBreak)
	row("resolver.timeout", cfg.Resolver.Timeout)
	row("resolver.max_steps", cfg.Resolver.MaxSteps)
	row("resolver.minimize_explanations", cfg.Resolver.MinimizeExplanations)
	row("host.id", cfg.Host.ID)
	row("host.version", cfg.Host.Version)
	for _, b := range cfg.Builtins {
		row("builtin "+b.ID, b.Version)
	}
	row("ui.verbose", cfg.UI.Verbose)
	row("ui.color_scheme", cfg.UI.ColorScheme)
}

func (a *App) initConfig(root *rootFlagValues) error {
	path, err := configPath(root)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	created, err := config.WriteDefault(path)
	if err != nil {
		return a.fail(ExitUsage, issue.WrapWithContext(err, "write default configuration", path), root.verbose)
	}
	if !created {
		fmt.Fprintf(a.stdout, "%s %s already exists\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s wrote %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
