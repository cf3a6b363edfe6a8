// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/modsolve/modsolve/internal/config"
	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/internal/issue"
	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/engine"
	"github.com/modsolve/modsolve/pkg/resolve"
	"github.com/modsolve/modsolve/pkg/version"
)

// sourceFlags override the discovery inputs of the configuration.
type sourceFlags struct {
	modsDir  string
	env      string
	includes []string
}

// roots returns every path discovery reads, for watching.
func (s sourceFlags) roots(cfg *config.Config) []string {
	out := []string{s.modsDirOr(cfg)}
	out = append(out, cfg.Includes...)
	return append(out, s.includes...)
}

func (s sourceFlags) modsDirOr(cfg *config.Config) string {
	if s.modsDir != "" {
		return s.modsDir
	}
	return cfg.ModsDir
}

// newResolutionContext translates configuration and flags into the explicit
// context of one engine run.
func newResolutionContext(cfg *config.Config, src sourceFlags, logger *log.Logger) (*engine.ResolutionContext, error) {
	envName := string(cfg.Environment)
	if src.env != "" {
		envName = src.env
	}
	env, err := descriptor.ParseEnvironment(envName)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select environment").
			WithSuggestion("Use --env client, --env server or --env '*'").
			Wrap(err).
			BuildError()
	}

	tieBreak, err := resolve.ParseTieBreak(string(cfg.Resolver.TieBreak))
	if err != nil {
		return nil, err
	}

	rc := &engine.ResolutionContext{
		Environment:     env,
		ModsDir:         src.modsDirOr(cfg),
		Ignore:          cfg.Ignore,
		Includes:        append(append([]string{}, cfg.Includes...), src.includes...),
		HostID:          cfg.Host.ID,
		EngineVersion:   Version,
		Workers:         cfg.Discovery.Workers,
		MaxNestingDepth: cfg.Discovery.MaxNestingDepth,
		Resolve: resolve.Options{
			TieBreak:     tieBreak,
			Timeout:      cfg.Resolver.Timeout,
			MaxSteps:     cfg.Resolver.MaxSteps,
			SkipMinimize: !cfg.Resolver.MinimizeExplanations,
		},
		Logger: logger,
	}

	if cfg.Host.Version != "" {
		if rc.HostVersion, err = version.Parse(cfg.Host.Version); err != nil {
			return nil, invalidVersion("host.version", err)
		}
	}
	for _, b := range cfg.Builtins {
		v, err := version.Parse(b.Version)
		if err != nil {
			return nil, invalidVersion("builtin "+b.ID, err)
		}
		rc.Builtins = append(rc.Builtins, discovery.Builtin{ID: b.ID, Version: v})
	}
	return rc, nil
}

func invalidVersion(what string, err error) error {
	return issue.NewErrorContext().
		WithOperation("parse " + what).
		WithIssue(issue.InvalidVersionId).
		Wrap(fmt.Errorf("%s: %w", what, err)).
		BuildError()
}
