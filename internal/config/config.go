// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/modsolve/modsolve/internal/issue"
	"github.com/modsolve/modsolve/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "modsolve"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variable overrides, e.g.
	// MODSOLVE_RESOLVER_TIE_BREAK for resolver.tie_break.
	EnvPrefix = "MODSOLVE"
)

//go:embed config_schema.cue
var configSchema string

// configDirOverride lets tests bypass os.UserHomeDir, which does not
// honor HOME on every platform.
var configDirOverride string

// SetConfigDirOverride replaces the platform config directory.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// ConfigDir returns the modsolve configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configDir, AppName), nil
}

// DefaultPath returns the config file path inside ConfigDir.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// newViper returns a viper instance holding every default and reading
// MODSOLVE_* environment overrides.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("mods_dir", defaults.ModsDir)
	v.SetDefault("environment", defaults.Environment)
	v.SetDefault("includes", defaults.Includes)
	v.SetDefault("ignore", defaults.Ignore)
	v.SetDefault("discovery.workers", defaults.Discovery.Workers)
	v.SetDefault("discovery.max_nesting_depth", defaults.Discovery.MaxNestingDepth)
	v.SetDefault("resolver.tie_break", defaults.Resolver.TieBreak)
	v.SetDefault("resolver.timeout", defaults.Resolver.Timeout)
	v.SetDefault("resolver.max_steps", defaults.Resolver.MaxSteps)
	v.SetDefault("resolver.minimize_explanations", defaults.Resolver.MinimizeExplanations)
	v.SetDefault("host.id", defaults.Host.ID)
	v.SetDefault("host.version", defaults.Host.Version)
	v.SetDefault("builtins", defaults.Builtins)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Lookup order: the explicit file, the config directory,
// the working directory, then defaults alone.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path, err := locate(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'modsolve config --help' for configuration options").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = path

	if ok, errs := cfg.IsValid(); !ok {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check environment variables starting with " + EnvPrefix + "_").
			WithSuggestion("Remove duplicate includes and fix invalid ignore globs").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, nil
}

// locate returns the config file to read, or "" when none exists.
// An explicit path that does not exist is an error.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'modsolve config init' to create a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), filepath.Join(opts.WorkDir, name)} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The config decodes to a map rather than a struct so that viper keeps its
// defaults and environment overrides for fields the file leaves out.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path unless a file
// already exists there. It reports whether the file was created.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modsolve configuration file\n\n")
	fmt.Fprintf(&sb, "mods_dir: %q\n", cfg.ModsDir)
	fmt.Fprintf(&sb, "environment: %q\n", cfg.Environment)
	writeList(&sb, "includes", cfg.Includes)
	writeList(&sb, "ignore", cfg.Ignore)

	sb.WriteString("\ndiscovery: {\n")
	fmt.Fprintf(&sb, "\tworkers: %d\n", cfg.Discovery.Workers)
	fmt.Fprintf(&sb, "\tmax_nesting_depth: %d\n", cfg.Discovery.MaxNestingDepth)
	sb.WriteString("}\n")

	sb.WriteString("\nresolver: {\n")
	fmt.Fprintf(&sb, "\ttie_break: %q\n", cfg.Resolver.TieBreak)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Resolver.Timeout.String())
	fmt.Fprintf(&sb, "\tmax_steps: %d\n", cfg.Resolver.MaxSteps)
	fmt.Fprintf(&sb, "\tminimize_explanations: %v\n", cfg.Resolver.MinimizeExplanations)
	sb.WriteString("}\n")

	sb.WriteString("\nhost: {\n")
	fmt.Fprintf(&sb, "\tid: %q\n", cfg.Host.ID)
	fmt.Fprintf(&sb, "\tversion: %q\n", cfg.Host.Version)
	sb.WriteString("}\n")

	if len(cfg.Builtins) > 0 {
		sb.WriteString("\nbuiltins: [\n")
		for _, b := range cfg.Builtins {
			fmt.Fprintf(&sb, "\t{id: %q, version: %q},\n", b.ID, b.Version)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s: [\n", key)
	for _, it := range items {
		fmt.Fprintf(sb, "\t%q,\n", it)
	}
	sb.WriteString("]\n")
}
