// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/resolve"
	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// DefaultHostID is the id of the host application builtin.
	DefaultHostID = "host"
	// EngineID is the id of the builtin representing this engine.
	EngineID = "modsolve"
	// PlatformID is the id of the builtin representing the Go runtime.
	PlatformID = "go"
)

type (
	// Recorder observes pipeline runs. Implementations must be safe for
	// concurrent use.
	Recorder interface {
		ObserveDiscovery(res *discovery.Result, elapsed time.Duration)
		ObserveResolution(rep *Report)
	}

	// ResolutionContext carries everything one run depends on. It replaces
	// any process-wide loader state: two contexts never share anything.
	ResolutionContext struct {
		// Environment filters candidates. Universal admits every module.
		Environment descriptor.Environment
		// ModsDir is scanned for module directories and archives.
		ModsDir string
		// Ignore holds doublestar globs matched against entry names in ModsDir.
		Ignore []string
		// Includes are extra locations loaded after ModsDir.
		Includes []string
		// Finders run after the directory and include finders.
		Finders []discovery.Finder

		// HostID and HostVersion describe the host application builtin.
		HostID      string
		HostVersion version.Version
		// EngineVersion is the running engine version; unparsable values
		// such as "dev" become 0.0.0.
		EngineVersion string
		// Builtins are extra synthetic modules injected after the defaults.
		Builtins []discovery.Builtin

		Workers         int
		MaxNestingDepth int
		Resolve         resolve.Options

		Logger   *log.Logger
		Recorder Recorder
	}
)

// Builtin returns the synthetic modules injected into every run: the host
// application, the engine and the Go runtime, followed by rc.Builtins.
func (rc *ResolutionContext) Builtin() []discovery.Builtin {
	hostID := rc.HostID
	if hostID == "" {
		hostID = DefaultHostID
	}
	hostVersion := rc.HostVersion
	if hostVersion.IsZero() {
		hostVersion = version.MustParse("1.0.0")
	}

	out := []discovery.Builtin{
		{ID: hostID, Version: hostVersion},
		{ID: EngineID, Version: lenientVersion(rc.EngineVersion)},
		{ID: PlatformID, Version: goVersion(runtime.Version())},
	}
	return append(out, rc.Builtins...)
}

func (rc *ResolutionContext) logger() *log.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return log.New(io.Discard)
}

// lenientVersion parses s, ignoring a leading "v", and falls back to 0.0.0.
func lenientVersion(s string) version.Version {
	v, err := version.Parse(strings.TrimPrefix(s, "v"))
	if err != nil {
		return version.MustParse("0.0.0")
	}
	return v
}

// goVersion turns "go1.25.1" into 1.25.1. Development toolchains report 0.0.0.
func goVersion(s string) version.Version {
	if !strings.HasPrefix(s, "go") {
		return version.MustParse("0.0.0")
	}
	s = strings.TrimPrefix(s, "go")
	if i := strings.IndexAny(s, " -"); i >= 0 {
		s = s[:i]
	}
	// Release candidates look like 1.26rc1.
	if i := strings.IndexAny(s, "abcdefghijklmnopqrstuvwxyz"); i >= 0 {
		s = s[:i]
	}
	return lenientVersion(s)
}
