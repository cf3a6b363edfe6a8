// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modsolve/modsolve/internal/config"
	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/internal/issue"
	"github.com/modsolve/modsolve/internal/metrics"
	"github.com/modsolve/modsolve/internal/watch"
	"github.com/modsolve/modsolve/pkg/engine"
)

type resolveFlagValues struct {
	sourceFlags
	format      string
	explain     bool
	watch       bool
	metricsFile string
}

func addSourceFlags(cmd *cobra.Command, src *sourceFlags) {
	cmd.Flags().StringVar(&src.modsDir, "mods-dir", "", "directory scanned for modules (default from config, then ./mods)")
	cmd.Flags().StringVar(&src.env, "env", "", "environment filter: client, server or *")
	cmd.Flags().StringArrayVar(&src.includes, "include", nil, "extra module location, repeatable")
}

func newResolveCommand(app *App, root *rootFlagValues) *cobra.Command {
	flags := &resolveFlagValues{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the modules to load and their activation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), app, root, flags)
		},
	}
	addSourceFlags(cmd, &flags.sourceFlags)
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text or json")
	cmd.Flags().BoolVar(&flags.explain, "explain", false, "explain a failed resolution with suggestions")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "resolve again whenever a module changes")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after every run")
	return cmd
}

func runResolve(ctx context.Context, app *App, root *rootFlagValues, flags *resolveFlagValues) error {
	if flags.format != formatText && flags.format != formatJSON {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("unknown format %q (expected text or json)", flags.format)}
	}

	cfg, err := app.loadConfig(ctx, root)
	if err != nil {
		return err
	}
	logger := app.logger(root)
	rc, err := newResolutionContext(cfg, flags.sourceFlags, logger)
	if err != nil {
		return app.fail(ExitUsage, err, root.verbose)
	}

	var collector *metrics.Collector
	if flags.metricsFile != "" {
		collector = metrics.New()
		rc.Recorder = collector
	}

	once := func(ctx context.Context) error {
		rep, err := engine.Run(ctx, rc)
		if rep != nil {
			if outErr := app.writeReport(rep, flags, cfg, root.verbose); outErr != nil {
				return outErr
			}
		}
		if collector != nil {
			if mErr := collector.WriteTextfile(flags.metricsFile); mErr != nil {
				logger.Warn("write metrics", "location", flags.metricsFile, "error", mErr)
			}
		}
		return app.classify(err, root.verbose)
	}

	if !flags.watch {
		return once(ctx)
	}
	return app.watchResolve(ctx, once, flags.roots(cfg), cfg.Ignore, logger)
}

func (a *App) writeReport(rep *engine.Report, flags *resolveFlagValues, cfg *config.Config, verbose bool) error {
	if flags.format == formatJSON {
		return writeJSON(a.stdout, rep.View())
	}
	renderReport(a.stdout, rep, verbose)
	if rep.Failure != nil && flags.explain {
		md := issue.Explain(rep.Failure)
		out, err := issue.RenderMarkdown(md, cfg.UI.ColorScheme.String())
		if err != nil {
			out = string(md)
		}
		fmt.Fprint(a.stdout, out)
	}
	return nil
}

// classify maps an engine error to its exit code.
func (a *App) classify(err error, verbose bool) error {
	if err == nil {
		return nil
	}
	var derr *discovery.Error
	if errors.As(err, &derr) {
		return a.fail(ExitDiscovery, issue.NewErrorContext().
			WithOperation("discover modules").
			WithSuggestion("Check that the mods directory and include paths exist and are readable").
			WithIssue(issue.DiscoveryFailedId).
			Wrap(err).
			BuildError(), verbose)
	}
	// *resolve.Failure, or ctx's error when the engine stopped early.
	return &ExitError{Code: ExitResolution, Err: err}
}

// watchResolve runs once and then again after every relevant change until
// ctx is canceled. Failed runs are reported but do not stop the watch.
func (a *App) watchResolve(ctx context.Context, once func(context.Context) error, roots, ignore []string, logger *log.Logger) error {
	if err := once(ctx); err != nil {
		logger.Warn("resolution failed, waiting for changes", "error", err)
	}
	w, err := watch.New(watch.Options{
		Roots:  roots,
		Ignore: ignore,
		Logger: logger,
		OnChange: func(ctx context.Context, _ []string) error {
			fmt.Fprintln(a.stdout, SubtitleStyle.Render("\n--- modules changed, resolving again ---"))
			return once(ctx)
		},
	})
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	return w.Run(ctx)
}
