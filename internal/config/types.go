// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// EnvironmentAny admits every module.
	EnvironmentAny Environment = "*"
	// EnvironmentClient restricts discovery to client and universal modules.
	EnvironmentClient Environment = "client"
	// EnvironmentServer restricts discovery to server and universal modules.
	EnvironmentServer Environment = "server"

	// TieBreakNewest prefers the highest version, then discovery order.
	TieBreakNewest TieBreak = "newest"
	// TieBreakFirstDiscovered prefers discovery order, then the highest version.
	TieBreakFirstDiscovered TieBreak = "first_discovered"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultModsDir is scanned when no mods directory is configured.
	DefaultModsDir = "mods"
	// DefaultTimeout bounds a single resolution.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrInvalidEnvironment is returned when an Environment value is not recognized.
	ErrInvalidEnvironment = errors.New("invalid environment")
	// ErrInvalidTieBreak is returned when a TieBreak value is not recognized.
	ErrInvalidTieBreak = errors.New("invalid tie-break policy")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidPattern is returned for an ignore glob doublestar cannot parse.
	ErrInvalidPattern = errors.New("invalid ignore pattern")
	// ErrDuplicateInclude is returned when two includes name the same path.
	ErrDuplicateInclude = errors.New("duplicate include")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Environment selects which modules a run admits. It mirrors
	// descriptor.Environment without importing the descriptor package.
	Environment string

	// TieBreak names the resolver's version preference policy.
	TieBreak string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidValueError is returned when an enumerated setting holds an
	// unknown value. It unwraps to the sentinel of its setting.
	InvalidValueError struct {
		Field string
		Value string
		Valid []string
		err   error
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// BuiltinEntry is an extra synthetic module injected into every run.
	BuiltinEntry struct {
		ID      string `json:"id" mapstructure:"id"`
		Version string `json:"version" mapstructure:"version"`
	}

	// Config holds the application configuration.
	Config struct {
		// ModsDir is the directory scanned for modules.
		ModsDir string `json:"mods_dir" mapstructure:"mods_dir"`
		// Environment filters modules by their declared environment.
		Environment Environment `json:"environment" mapstructure:"environment"`
		// Includes are extra module locations loaded after ModsDir.
		Includes []string `json:"includes" mapstructure:"includes"`
		// Ignore holds doublestar globs for entries of ModsDir to skip.
		Ignore    []string        `json:"ignore" mapstructure:"ignore"`
		Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery"`
		Resolver  ResolverConfig  `json:"resolver" mapstructure:"resolver"`
		Host      HostConfig      `json:"host" mapstructure:"host"`
		Builtins  []BuiltinEntry  `json:"builtins" mapstructure:"builtins"`
		UI        UIConfig        `json:"ui" mapstructure:"ui"`

		// Source is the file the configuration was read from, empty when
		// only defaults and environment variables apply.
		Source string `json:"-" mapstructure:"-"`
	}

	// DiscoveryConfig tunes the discovery worker pool.
	DiscoveryConfig struct {
		// Workers bounds concurrent loads; 0 picks GOMAXPROCS capped at 8.
		Workers int `json:"workers" mapstructure:"workers"`
		// MaxNestingDepth bounds nested module references.
		MaxNestingDepth int `json:"max_nesting_depth" mapstructure:"max_nesting_depth"`
	}

	// ResolverConfig tunes the search.
	ResolverConfig struct {
		TieBreak TieBreak      `json:"tie_break" mapstructure:"tie_break"`
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
		// MaxSteps of 0 uses the resolver default.
		MaxSteps             int  `json:"max_steps" mapstructure:"max_steps"`
		MinimizeExplanations bool `json:"minimize_explanations" mapstructure:"minimize_explanations"`
	}

	// HostConfig describes the host application exposed as a builtin module.
	HostConfig struct {
		ID      string `json:"id" mapstructure:"id"`
		Version string `json:"version" mapstructure:"version"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q (valid: %s)", e.Field, e.Value, strings.Join(e.Valid, ", "))
}

func (e *InvalidValueError) Unwrap() error { return e.err }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func (e Environment) String() string { return string(e) }

// IsValid returns whether the Environment is one of the defined environments,
// and a list of validation errors if it is not.
func (e Environment) IsValid() (bool, []error) {
	switch e {
	case EnvironmentAny, EnvironmentClient, EnvironmentServer:
		return true, nil
	}
	return false, []error{&InvalidValueError{
		Field: "environment", Value: string(e), Valid: []string{"client", "server", "*"}, err: ErrInvalidEnvironment,
	}}
}

func (t TieBreak) String() string { return string(t) }

func (t TieBreak) IsValid() (bool, []error) {
	switch t {
	case TieBreakNewest, TieBreakFirstDiscovered:
		return true, nil
	}
	return false, []error{&InvalidValueError{
		Field: "resolver.tie_break", Value: string(t), Valid: []string{"newest", "first_discovered"}, err: ErrInvalidTieBreak,
	}}
}

func (cs ColorScheme) String() string { return string(cs) }

func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	}
	return false, []error{&InvalidValueError{
		Field: "ui.color_scheme", Value: string(cs), Valid: []string{"auto", "dark", "light"}, err: ErrInvalidColorScheme,
	}}
}

// IsValid checks the constraints the CUE schema cannot express, plus the
// enumerations again so that environment variable overrides are covered.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	check := func(_ bool, fieldErrs []error) { errs = append(errs, fieldErrs...) }

	check(c.Environment.IsValid())
	check(c.Resolver.TieBreak.IsValid())
	check(c.UI.ColorScheme.IsValid())

	if c.Resolver.Timeout < 0 {
		errs = append(errs, fmt.Errorf("resolver.timeout must not be negative, got %s", c.Resolver.Timeout))
	}
	if c.Resolver.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("resolver.max_steps must not be negative, got %d", c.Resolver.MaxSteps))
	}
	if c.Discovery.Workers < 0 {
		errs = append(errs, fmt.Errorf("discovery.workers must not be negative, got %d", c.Discovery.Workers))
	}

	for i, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("%w: ignore[%d] %q", ErrInvalidPattern, i, p))
		}
	}

	seen := make(map[string]int, len(c.Includes))
	for i, p := range c.Includes {
		clean := filepath.Clean(p)
		if first, ok := seen[clean]; ok {
			errs = append(errs, fmt.Errorf("%w: includes[%d] %q (same as includes[%d])", ErrDuplicateInclude, i, p, first))
			continue
		}
		seen[clean] = i
	}

	if c.Host.Version != "" {
		if _, err := version.Parse(c.Host.Version); err != nil {
			errs = append(errs, fmt.Errorf("host.version: %w", err))
		}
	}
	for i, b := range c.Builtins {
		if _, err := version.Parse(b.Version); err != nil {
			errs = append(errs, fmt.Errorf("builtins[%d] %s: %w", i, b.ID, err))
		}
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ModsDir:     DefaultModsDir,
		Environment: EnvironmentAny,
		Includes:    []string{},
		Ignore:      []string{},
		Discovery: DiscoveryConfig{
			Workers:         0,
			MaxNestingDepth: 3,
		},
		Resolver: ResolverConfig{
			TieBreak:             TieBreakNewest,
			Timeout:              DefaultTimeout,
			MaxSteps:             0,
			MinimizeExplanations: true,
		},
		Host: HostConfig{
			ID:      "host",
			Version: "1.0.0",
		},
		Builtins: []BuiltinEntry{},
		UI: UIConfig{
			Verbose:     false,
			ColorScheme: ColorSchemeAuto,
		},
	}
}
