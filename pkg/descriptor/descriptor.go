// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// FileCUE is the preferred descriptor file name.
	FileCUE = "mod.cue"
	// FileJSON is the JSON descriptor file name.
	FileJSON = "mod.json"
	// FileTOML is the TOML descriptor file name.
	FileTOML = "mod.toml"

	// FormatCUE marks a descriptor decoded from CUE source.
	FormatCUE Format = "cue"
	// FormatJSON marks a descriptor decoded from JSON.
	FormatJSON Format = "json"
	// FormatTOML marks a descriptor decoded from TOML.
	FormatTOML Format = "toml"

	// EnvUniversal allows a module in every environment.
	EnvUniversal Environment = "*"
	// EnvClient restricts a module to client runs.
	EnvClient Environment = "client"
	// EnvServer restricts a module to server runs.
	EnvServer Environment = "server"

	// CurrentSchemaVersion is the only descriptor schema version understood.
	CurrentSchemaVersion = 1
)

var (
	//go:embed descriptor_schema.cue
	schema []byte

	// ErrNoDescriptor is returned when a location holds none of the descriptor files.
	// Such a location is a non-module.
	ErrNoDescriptor = errors.New("no module descriptor found")

	// ErrInvalidDescriptor is wrapped by InvalidDescriptorError.
	ErrInvalidDescriptor = errors.New("invalid module descriptor")

	// ErrInvalidEnvironment is returned by ParseEnvironment for unknown values.
	ErrInvalidEnvironment = errors.New("invalid environment")

	probeOrder = []struct {
		file   string
		format Format
	}{
		{FileCUE, FormatCUE},
		{FileJSON, FormatJSON},
		{FileTOML, FormatTOML},
	}
)

type (
	// Format identifies the syntax a descriptor was written in.
	Format string

	// Environment is the side of a run a module may load on.
	Environment string

	// Constraint is one declared relation to another module id. Ranges are
	// alternatives; an empty Ranges accepts any version.
	Constraint struct {
		Target string
		Ranges version.Ranges
	}

	// Descriptor is the parsed, validated content of a module descriptor.
	// Constraint lists are sorted by target id.
	Descriptor struct {
		SchemaVersion int
		ID            string
		Version       version.Version
		Name          string
		Description   string
		Authors       []string
		License       string
		Environment   Environment

		Depends    []Constraint
		Recommends []Constraint
		Suggests   []Constraint
		Conflicts  []Constraint
		Breaks     []Constraint

		// Provides lists alias ids this module also satisfies.
		Provides []string
		// Nested lists slash-separated paths of modules packaged inside this one.
		Nested []string

		// File is the descriptor file name inside its location.
		File   string
		Format Format
	}

	// InvalidDescriptorError reports a descriptor that failed schema or
	// semantic validation. Err is usually a *cueutil.ValidationError.
	InvalidDescriptorError struct {
		File string
		Err  error
	}

	// rawDescriptor mirrors #Descriptor for CUE decoding. Range maps hold
	// either a string or a list of strings.
	rawDescriptor struct {
		SchemaVersion int            `json:"schema_version"`
		ID            string         `json:"id"`
		Version       string         `json:"version"`
		Name          string         `json:"name"`
		Description   string         `json:"description"`
		Authors       []string       `json:"authors"`
		License       string         `json:"license"`
		Environment   string         `json:"environment"`
		Depends       map[string]any `json:"depends"`
		Recommends    map[string]any `json:"recommends"`
		Suggests      map[string]any `json:"suggests"`
		Conflicts     map[string]any `json:"conflicts"`
		Breaks        map[string]any `json:"breaks"`
		Provides      []string       `json:"provides"`
		Nested        []string       `json:"nested"`
	}
)

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidDescriptor, e.Err)
}

// Unwrap exposes both ErrInvalidDescriptor and the underlying cause.
func (e *InvalidDescriptorError) Unwrap() []error {
	return []error{ErrInvalidDescriptor, e.Err}
}

// ParseEnvironment accepts "client", "server", "*" and the aliases
// "universal", "both" and "" for EnvUniversal.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return EnvClient, nil
	case "server":
		return EnvServer, nil
	case "*", "", "universal", "both":
		return EnvUniversal, nil
	}
	return "", fmt.Errorf("%w %q (expected client, server or *)", ErrInvalidEnvironment, s)
}

// Allows reports whether a module restricted to e may load in a run of env.
// A universal run admits every module.
func (e Environment) Allows(env Environment) bool {
	return e == EnvUniversal || e == "" || env == EnvUniversal || env == "" || e == env
}

// String returns the environment name.
func (e Environment) String() string {
	if e == "" {
		return string(EnvUniversal)
	}
	return string(e)
}

// String renders "target ranges".
func (c Constraint) String() string {
	return c.Target + " " + c.Ranges.String()
}

// ProvidesID reports whether the descriptor's own id or one of its
// provided aliases equals id.
func (d *Descriptor) ProvidesID(id string) bool {
	if d.ID == id {
		return true
	}
	for _, p := range d.Provides {
		if p == id {
			return true
		}
	}
	return false
}
