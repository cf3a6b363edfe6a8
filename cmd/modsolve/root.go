// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the modsolve command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "modsolve",
		Short: "Discover modules and resolve a loadable set",
		Long: TitleStyle.Render("modsolve") + SubtitleStyle.Render(" - module discovery and dependency resolution") + `

modsolve scans a mods directory for module directories and archives, reads
their descriptors and picks exactly one version of every module so that all
requirements, conflicts and breaks hold. It prints the selection in the order
the modules must be activated, or explains why no selection exists.

` + SubtitleStyle.Render("Examples:") + `
  modsolve resolve                     Resolve ./mods
  modsolve resolve --env server        Resolve for a dedicated server
  modsolve resolve --explain           Explain a failed resolution
  modsolve discover                    List what discovery found
  modsolve validate mods/my-module     Check one module descriptor
  modsolve version check 1.4.2 "^1.2"  Test a version against a range`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/modsolve/config.cue)")

	rootCmd.AddCommand(
		newResolveCommand(app, flags),
		newDiscoverCommand(app, flags),
		newValidateCommand(app, flags),
		newVersionCommand(app),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// Execute runs the CLI and exits with the code carried by an *ExitError.
// It is called by main.main.
func Execute() {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitUsage)
	}
}
