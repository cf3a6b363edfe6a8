// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/modsolve/modsolve/internal/testutil"
	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/engine"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/resolve"
	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// sampleCUE is a representative descriptor exercising every relation.
	sampleCUE = `
schema_version: 1
id:          "worldgen"
version:     "2.4.1-beta.2+build.77"
name:        "World Generation"
description: "Terrain and structure generation"
authors: ["alice", "bob"]
license:     "MPL-2.0"
environment: "*"
depends: {
	host:    ">=1.20 <1.21"
	core:    "^3.1"
	noise:   ["~1.4", "2.x"]
	storage: "*"
}
recommends: {
	biomes: ">=0.9"
	ores:   "^2"
}
suggests: maps: "*"
conflicts: {
	legacy_gen: "*"
	old_noise:  "<1.0"
}
breaks: core: "<3.0"
provides: ["terrain", "structures"]
nested: ["bundled/noise", "bundled/storage"]
`

	sampleJSON = `{
	"id": "worldgen",
	"version": "2.4.1",
	"depends": {"host": ">=1.20 <1.21", "core": "^3.1", "noise": ["~1.4", "2.x"]},
	"recommends": {"biomes": ">=0.9"},
	"conflicts": {"legacy_gen": "*"},
	"provides": ["terrain"]
}`

	sampleTOML = `
id = "worldgen"
version = "2.4.1"

[depends]
host = ">=1.20 <1.21"
core = "^3.1"
noise = ["~1.4", "2.x"]

[conflicts]
legacy_gen = "*"
`
)

var sampleRanges = []string{">=1.2.0 <2.0.0", "^3.1", "~1.4.2", "2.x", "=4.0.0-rc.1", "*"}

func BenchmarkDescriptorParsingCUE(b *testing.B) {
	benchmarkDescriptor(b, sampleCUE, descriptor.FormatCUE, descriptor.FileCUE)
}

func BenchmarkDescriptorParsingJSON(b *testing.B) {
	benchmarkDescriptor(b, sampleJSON, descriptor.FormatJSON, descriptor.FileJSON)
}

func BenchmarkDescriptorParsingTOML(b *testing.B) {
	benchmarkDescriptor(b, sampleTOML, descriptor.FormatTOML, descriptor.FileTOML)
}

func benchmarkDescriptor(b *testing.B, src string, format descriptor.Format, file string) {
	b.Helper()
	data := []byte(src)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := descriptor.Parse(data, format, file, 0); err != nil {
			b.Fatalf("Parse() error = %v", err)
		}
	}
}

func BenchmarkVersionRanges(b *testing.B) {
	v := version.MustParse("1.4.7")

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		rs, err := version.ParseRanges(sampleRanges)
		if err != nil {
			b.Fatalf("ParseRanges() error = %v", err)
		}
		_ = rs.Test(v)
	}
}

func BenchmarkDiscovery(b *testing.B) {
	dir := b.TempDir()
	writeModsDir(b, dir, 40)
	rc := &engine.ResolutionContext{ModsDir: dir}
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		res, err := engine.Discover(ctx, rc)
		if err != nil {
			b.Fatalf("Discover() error = %v", err)
		}
		if len(res.Candidates) == 0 {
			b.Fatal("no candidates discovered")
		}
	}
}

// BenchmarkResolveChain resolves a chain of modules with several versions
// each.
func BenchmarkResolveChain(b *testing.B) {
	g := chainGraph(30, 5)
	r := resolve.New(resolve.Options{})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := r.Resolve(ctx, g); err != nil {
			b.Fatalf("Resolve() error = %v", err)
		}
	}
}

// BenchmarkResolveUnsatisfiable measures search exhaustion plus explanation
// minimization.
func BenchmarkResolveUnsatisfiable(b *testing.B) {
	cands := chainCandidates(12, 3)
	cands = append(cands, modgraph.New(modgraph.Spec{
		ID:       "blocker",
		Version:  version.MustParse("1.0.0"),
		Location: "/mods/blocker",
		Index:    len(cands),
		Dependencies: []modgraph.Dependency{
			{Target: "mod00", Ranges: version.MustParseRanges("*"), Kind: modgraph.Requires},
			{Target: "mod11", Ranges: version.MustParseRanges("*"), Kind: modgraph.Conflicts},
		},
	}))
	g := modgraph.Build(cands)
	r := resolve.New(resolve.Options{})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		if _, err := r.Resolve(ctx, g); err == nil {
			b.Fatal("Resolve() expected failure")
		}
	}
}

func BenchmarkEngineRun(b *testing.B) {
	dir := b.TempDir()
	writeModsDir(b, dir, 40)
	rc := &engine.ResolutionContext{ModsDir: dir}
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		if _, err := engine.Run(ctx, rc); err != nil {
			b.Fatalf("Run() error = %v", err)
		}
	}
}

// chainCandidates returns n module ids with versions each; version k of
// mod i requires mod i+1 at major k or older.
func chainCandidates(n, versions int) []*modgraph.Candidate {
	var out []*modgraph.Candidate
	for i := range n {
		id := fmt.Sprintf("mod%02d", i)
		for k := 1; k <= versions; k++ {
			spec := modgraph.Spec{
				ID:       id,
				Version:  version.MustParse(fmt.Sprintf("%d.0.0", k)),
				Location: fmt.Sprintf("/mods/%s-%d", id, k),
				Index:    len(out),
			}
			if i+1 < n {
				spec.Dependencies = []modgraph.Dependency{{
					Target: fmt.Sprintf("mod%02d", i+1),
					Ranges: version.MustParseRanges(fmt.Sprintf("<=%d.0.0", k)),
					Kind:   modgraph.Requires,
				}}
			}
			out = append(out, modgraph.New(spec))
		}
	}
	return out
}

func chainGraph(n, versions int) *modgraph.Graph {
	return modgraph.Build(chainCandidates(n, versions))
}

// writeModsDir writes n modules to dir, each depending on its predecessor.
func writeModsDir(b *testing.B, dir string, n int) {
	b.Helper()
	for i := range n {
		id := fmt.Sprintf("mod%02d", i)
		var extra []string
		if i > 0 {
			extra = append(extra, fmt.Sprintf("depends: mod%02d: \"^1\"", i-1))
		}
		testutil.WriteModule(b, dir, id, testutil.ModCUE(id, fmt.Sprintf("1.%d.0", i), extra...))
	}
}
