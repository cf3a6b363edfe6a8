// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/modsolve/modsolve/internal/testutil"
	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/version"
)

func discover(t *testing.T, opts ...Option) *Result {
	t.Helper()
	res, err := New(opts...).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return res
}

func ids(cands []*modgraph.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID()
	}
	return out
}

func hasDiagnostic(res *Result, code DiagnosticCode) bool {
	return slices.ContainsFunc(res.Diagnostics, func(d Diagnostic) bool { return d.Code == code })
}

func TestDiscover_DirFinder(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"alpha/mod.cue":        testutil.ModCUE("alpha", "1.0.0"),
		"junk/readme.txt":      "not a module",
		".hidden/mod.cue":      testutil.ModCUE("hidden", "1.0.0"),
		"skipped-one/mod.cue":  testutil.ModCUE("skipped", "1.0.0"),
		"notes.txt":            "loose file",
		"beta.zip":             string(testutil.ZipBytes(t, map[string]string{"mod.json": `{"id": "beta", "version": "2.0.0"}`})),
		"gamma/mod.toml":       "id = \"gamma\"\nversion = \"0.3.0\"\n",
		"delta.jar":            string(testutil.ZipBytes(t, map[string]string{"mod.cue": testutil.ModCUE("delta", "1.1")})),
		"skipped-two/mod.json": `{"id": "skipped2", "version": "1.0.0"}`,
	})

	res := discover(t, WithFinders(DirFinder{Dir: dir, Ignore: []string{"skipped-*"}}))

	if got, want := ids(res.Candidates), []string{"alpha", "beta", "delta", "gamma"}; !slices.Equal(got, want) {
		t.Errorf("candidate ids = %v, want %v", got, want)
	}
	for i, c := range res.Candidates {
		if c.Index() != i {
			t.Errorf("candidate %s index = %d, want %d", c, c.Index(), i)
		}
	}
	if res.Candidates[1].Location() != filepath.Join(dir, "beta.zip") {
		t.Errorf("beta location = %q", res.Candidates[1].Location())
	}

	if len(res.NonModules) != 1 || res.NonModules[0].Path != filepath.Join(dir, "junk") {
		t.Fatalf("NonModules = %v, want junk only", res.NonModules)
	}
	if !errors.Is(res.NonModules[0].Err, descriptor.ErrNoDescriptor) {
		t.Errorf("non-module error = %v, want ErrNoDescriptor", res.NonModules[0].Err)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", res.Diagnostics)
	}
}

func TestDiscover_MissingModsDir(t *testing.T) {
	t.Parallel()

	res := discover(t, WithFinders(DirFinder{Dir: filepath.Join(t.TempDir(), "absent")}))
	if len(res.Candidates) != 0 || len(res.Diagnostics) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestDiscover_InvalidIgnorePattern(t *testing.T) {
	t.Parallel()

	_, err := New(WithFinders(DirFinder{Dir: t.TempDir(), Ignore: []string{"[unclosed"}})).Discover(context.Background())
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	var derr *Error
	if !errors.As(err, &derr) || len(derr.Errs) != 1 {
		t.Errorf("expected one finder error, got %v", err)
	}
}

func TestDiscover_NestedModules(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	deep := testutil.ZipBytes(t, map[string]string{
		"mod.cue":          testutil.ModCUE("deep", "1.0", `nested: ["more"]`),
		"more/mod.cue":     testutil.ModCUE("more", "0.1"),
		"more/unused.json": "{}",
	})
	testutil.WriteFiles(t, dir, map[string]string{
		"zeta/mod.cue":          testutil.ModCUE("zeta", "2.0", `nested: ["./inner", "libs/deep.zip"]`),
		"zeta/inner/mod.cue":    testutil.ModCUE("inner", "1.0"),
		"zeta/libs/deep.zip":    string(deep),
		"omega/mod.cue":         testutil.ModCUE("omega", "1.0"),
		"omega/ignored/mod.cue": testutil.ModCUE("notnested", "1.0"),
	})

	res := discover(t, WithFinders(DirFinder{Dir: dir}))

	if got, want := ids(res.Candidates), []string{"omega", "zeta", "inner", "deep", "more"}; !slices.Equal(got, want) {
		t.Fatalf("candidate ids = %v, want %v", got, want)
	}
	zeta, inner, deepC, more := res.Candidates[1], res.Candidates[2], res.Candidates[3], res.Candidates[4]

	if inner.Parent() != zeta || deepC.Parent() != zeta || more.Parent() != deepC {
		t.Error("nested parents not linked")
	}
	if more.Depth() != 2 {
		t.Errorf("more depth = %d, want 2", more.Depth())
	}
	wantLoc := filepath.Join(dir, "zeta") + "!/libs/deep.zip!/more"
	if more.Location() != wantLoc {
		t.Errorf("more location = %q, want %q", more.Location(), wantLoc)
	}
	if inner.Location() != filepath.Join(dir, "zeta")+"!/inner" {
		t.Errorf("inner location = %q", inner.Location())
	}
}

func TestDiscover_NestingDepthBound(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"top/mod.cue":       testutil.ModCUE("top", "1.0", `nested: ["a"]`),
		"top/a/mod.cue":     testutil.ModCUE("level-one", "1.0", `nested: ["b"]`),
		"top/a/b/mod.cue":   testutil.ModCUE("level-two", "1.0", `nested: ["c"]`),
		"top/a/b/c/mod.cue": testutil.ModCUE("level-three", "1.0"),
		"other/mod.cue":     testutil.ModCUE("other", "1.0"),
	})

	res := discover(t, WithFinders(DirFinder{Dir: dir}), WithMaxNestingDepth(1))

	if got, want := ids(res.Candidates), []string{"other", "top", "level-one"}; !slices.Equal(got, want) {
		t.Errorf("candidate ids = %v, want %v", got, want)
	}
	if !hasDiagnostic(res, CodeNestingTooDeep) {
		t.Errorf("expected %s diagnostic, got %v", CodeNestingTooDeep, res.Diagnostics)
	}
}

func TestDiscover_EnvironmentFilter(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"zz/mod.cue":         testutil.ModCUE("zz", "1.0", `environment: "server"`, `nested: ["aa"]`),
		"zz/aa/mod.cue":      testutil.ModCUE("aa", "1.0"),
		"client/mod.cue":     testutil.ModCUE("client-ui", "1.0", `environment: "client"`),
		"everywhere/mod.cue": testutil.ModCUE("everywhere", "1.0", `environment: "*"`),
	})

	res := discover(t, WithFinders(DirFinder{Dir: dir}), WithEnvironment(descriptor.EnvClient))

	if got, want := ids(res.Candidates), []string{"client-ui", "everywhere"}; !slices.Equal(got, want) {
		t.Errorf("candidate ids = %v, want %v", got, want)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].ID != "zz" || res.Excluded[0].Environment != descriptor.EnvServer {
		t.Errorf("Excluded = %v, want zz only", res.Excluded)
	}

	all := discover(t, WithFinders(DirFinder{Dir: dir}))
	if len(all.Candidates) != 4 || len(all.Excluded) != 0 {
		t.Errorf("universal run should admit everything, got %v", ids(all.Candidates))
	}
}

func TestDiscover_DuplicateModules(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"one/mod.cue": testutil.ModCUE("xmod", "1.0"),
		"two/mod.cue": testutil.ModCUE("xmod", "1.0"),
	})

	res := discover(t, WithFinders(
		DirFinder{Dir: dir},
		PathFinder{Paths: []string{filepath.Join(dir, "one"), filepath.Join(dir, ".", "two")}},
	))

	if len(res.Candidates) != 2 {
		t.Fatalf("expected both physical copies, got %v", res.Candidates)
	}
	g := modgraph.Build(res.Candidates)
	if w := g.Warnings(); len(w) != 1 || w[0].Code != modgraph.WarnDuplicateModule {
		t.Errorf("Warnings() = %v, want one duplicate warning", w)
	}
}

func TestDiscover_SymlinkDeduplicated(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{"real/mod.cue": testutil.ModCUE("linked", "1.0")})
	other := testutil.TempDir(t)
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(other, "alias")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	res := discover(t, WithFinders(DirFinder{Dir: dir}, DirFinder{Dir: other}))
	if len(res.Candidates) != 1 || res.Candidates[0].Location() != filepath.Join(dir, "real") {
		t.Errorf("expected one canonical candidate, got %v", res.Candidates)
	}
}

// locationFinder emits fixed locations without checking them.
type locationFinder []Location

func (f locationFinder) Name() string { return "fixed" }

func (f locationFinder) Find(_ context.Context, emit func(Location)) error {
	for _, l := range f {
		emit(l)
	}
	return nil
}

func TestDiscover_UnresolvablePathSkipped(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	good := testutil.WriteModule(t, dir, "good", testutil.ModCUE("good", "1.0"))
	missing := filepath.Join(dir, "gone")

	res := discover(t, WithFinders(locationFinder{DiskLocation(missing), DiskLocation(good)}))

	if got := ids(res.Candidates); !slices.Equal(got, []string{"good"}) {
		t.Errorf("candidate ids = %v, want [good]", got)
	}
	if len(res.NonModules) != 0 {
		t.Errorf("unresolvable location must not be loaded, got NonModules %v", res.NonModules)
	}
	idx := slices.IndexFunc(res.Diagnostics, func(d Diagnostic) bool { return d.Code == CodeLocationPathInvalid })
	if idx < 0 || res.Diagnostics[idx].Path != missing {
		t.Errorf("expected %s diagnostic for %s, got %v", CodeLocationPathInvalid, missing, res.Diagnostics)
	}
}

func TestDiscover_SoftFailures(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"good/mod.cue":    testutil.ModCUE("good", "1.0", `nested: ["missing"]`),
		"broken/mod.cue":  `id: "Broken!"` + "\n",
		"corrupt.zip":     "definitely not a zip archive",
		"badver/mod.json": `{"id": "badver", "version": "1.x.y"}`,
	})

	res := discover(t, WithFinders(DirFinder{Dir: dir}))

	if got := ids(res.Candidates); !slices.Equal(got, []string{"good"}) {
		t.Errorf("candidate ids = %v, want [good]", got)
	}
	if len(res.NonModules) != 3 {
		t.Errorf("NonModules = %v, want broken, badver and corrupt.zip", res.NonModules)
	}
	for _, code := range []DiagnosticCode{CodeDescriptorInvalid, CodeLocationUnreadable, CodeNestedMissing} {
		if !hasDiagnostic(res, code) {
			t.Errorf("missing %s diagnostic in %v", code, res.Diagnostics)
		}
	}
	for _, nm := range res.NonModules {
		if nm.Path == filepath.Join(dir, "broken") && !errors.Is(nm.Err, descriptor.ErrInvalidDescriptor) {
			t.Errorf("broken error = %v, want ErrInvalidDescriptor", nm.Err)
		}
	}
}

func TestDiscover_FinderFailures(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{"alpha/mod.cue": testutil.ModCUE("alpha", "1.0")})
	missing := filepath.Join(dir, "does-not-exist")

	t.Run("fatal without candidates", func(t *testing.T) {
		t.Parallel()

		res, err := New(
			WithFinders(PathFinder{Paths: []string{missing}}),
			WithBuiltins(Builtin{ID: "host", Version: version.MustParse("1.0.0")}),
		).Discover(context.Background())
		if !errors.Is(err, ErrNoCandidates) || !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected ErrNoCandidates wrapping the I/O error, got %v", err)
		}
		if res == nil || !hasDiagnostic(res, CodeFinderFailed) {
			t.Errorf("expected partial result with finder diagnostic, got %+v", res)
		}
	})

	t.Run("soft when others succeed", func(t *testing.T) {
		t.Parallel()

		res := discover(t, WithFinders(PathFinder{Paths: []string{missing}}, DirFinder{Dir: dir}))
		if len(res.Candidates) != 1 || !hasDiagnostic(res, CodeFinderFailed) {
			t.Errorf("unexpected result %+v", res)
		}
	})
}

func TestDiscover_BuiltinsFirst(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{"alpha/mod.cue": testutil.ModCUE("alpha", "1.0")})

	res := discover(t,
		WithFinders(DirFinder{Dir: dir}),
		WithBuiltins(
			Builtin{ID: "host", Version: version.MustParse("1.0.0")},
			Builtin{ID: "modsolve", Version: version.MustParse("0.0.0")},
		),
	)

	if got, want := ids(res.Candidates), []string{"host", "modsolve", "alpha"}; !slices.Equal(got, want) {
		t.Fatalf("candidate ids = %v, want %v", got, want)
	}
	if !res.Candidates[0].IsBuiltin() || res.Candidates[2].IsBuiltin() {
		t.Error("builtin flags wrong")
	}
	if res.Candidates[2].Index() != 2 {
		t.Errorf("alpha index = %d, want 2", res.Candidates[2].Index())
	}
}

func TestDiscover_MemoryFinder(t *testing.T) {
	t.Parallel()

	inner := testutil.ZipBytes(t, map[string]string{"mod.cue": testutil.ModCUE("inner", "0.2")})
	res := discover(t, WithFinders(MemoryFinder{Archives: map[string][]byte{
		"pack":  testutil.ZipBytes(t, map[string]string{"mod.cue": testutil.ModCUE("pack", "1.0", `nested: ["jars/inner.jar"]`), "jars/inner.jar": string(inner)}),
		"bogus": []byte("nope"),
	}}))

	if got := ids(res.Candidates); !slices.Equal(got, []string{"pack", "inner"}) {
		t.Fatalf("candidate ids = %v", got)
	}
	if loc := res.Candidates[1].Location(); loc != "mem:pack!/jars/inner.jar" {
		t.Errorf("inner location = %q", loc)
	}
	if len(res.NonModules) != 1 || res.NonModules[0].Path != "mem:bogus" {
		t.Errorf("NonModules = %v", res.NonModules)
	}
}

func TestDiscover_Deterministic(t *testing.T) {
	t.Parallel()

	dir := testutil.TempDir(t)
	files := map[string]string{}
	for i := range 20 {
		files[fmt.Sprintf("m%02d/mod.cue", i)] = testutil.ModCUE(fmt.Sprintf("mod%02d", i%7), fmt.Sprintf("1.%d", i))
	}
	testutil.WriteFiles(t, dir, files)

	var first []string
	for run := range 5 {
		res := discover(t, WithFinders(DirFinder{Dir: dir}), WithWorkers(4))
		locs := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			locs[i] = c.Location()
		}
		if run == 0 {
			first = locs
			continue
		}
		if !slices.Equal(first, locs) {
			t.Fatalf("run %d order differs: %v vs %v", run, locs, first)
		}
	}
	if !slices.IsSorted(first) {
		t.Errorf("locations not sorted: %v", first)
	}
}

func TestDiscover_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithFinders(DirFinder{Dir: t.TempDir()})).Discover(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
