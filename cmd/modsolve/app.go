// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/modsolve/modsolve/internal/config"
	"github.com/modsolve/modsolve/internal/issue"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App wires CLI services. Every command handler receives it and writes
	// only to its writers.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration selected by the root flags and folds
// ui.verbose into the verbose flag.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, a.fail(ExitUsage, err, flags.verbose)
	}
	if cfg.UI.Verbose {
		flags.verbose = true
	}
	return cfg, nil
}

// logger returns the stderr logger of one command run.
func (a *App) logger(flags *rootFlagValues) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	if flags.verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// fail prints the hints of an actionable error, which the error message
// itself does not carry, and wraps err with an exit code.
func (a *App) fail(code int, err error, verbose bool) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if hints := strings.TrimPrefix(ae.Format(verbose), ae.Error()); strings.TrimSpace(hints) != "" {
			fmt.Fprintln(a.stderr, WarningStyle.Render(strings.TrimLeft(hints, "\n")))
		}
	}
	return &ExitError{Code: code, Err: err}
}
