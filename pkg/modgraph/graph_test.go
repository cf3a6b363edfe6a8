// SPDX-License-Identifier: MPL-2.0

package modgraph

import (
	"slices"
	"strings"
	"testing"

	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/version"
)

func cand(t *testing.T, id, ver, loc string, index int, opts ...func(*Spec)) *Candidate {
	t.Helper()
	spec := Spec{ID: id, Version: version.MustParse(ver), Location: loc, Index: index}
	for _, o := range opts {
		o(&spec)
	}
	return New(spec)
}

func withProvides(ids ...string) func(*Spec) {
	return func(s *Spec) { s.Provides = ids }
}

func withParent(p *Candidate) func(*Spec) {
	return func(s *Spec) { s.Parent = p }
}

func TestBuildKeepsAllAlternatives(t *testing.T) {
	t.Parallel()

	b1 := cand(t, "b", "1.0", "/mods/b1", 1)
	b2 := cand(t, "b", "2.1", "/mods/b2", 2)
	a := cand(t, "a", "1.0", "/mods/a", 0)

	g := Build([]*Candidate{b2, a, b1})

	if got := g.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if got := g.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("IDs() = %v, want [a b]", got)
	}
	if got := g.CandidatesFor("b"); len(got) != 2 || got[0] != b1 || got[1] != b2 {
		t.Errorf("CandidatesFor(b) = %v, want [b1 b2] in discovery order", got)
	}
	if g.Order(a) != 0 || g.Order(b1) != 1 || g.Order(b2) != 2 {
		t.Errorf("Order() = %d/%d/%d", g.Order(a), g.Order(b1), g.Order(b2))
	}
	if len(g.Warnings()) != 0 {
		t.Errorf("unexpected warnings %v", g.Warnings())
	}
}

func TestBuildProvidesAliases(t *testing.T) {
	t.Parallel()

	api := cand(t, "api", "1.0", "/mods/api", 0)
	impl := cand(t, "impl", "3.0", "/mods/impl", 1, withProvides("api"))

	g := Build([]*Candidate{api, impl})

	providers := g.Providers("api")
	if len(providers) != 2 || providers[0] != api || providers[1] != impl {
		t.Errorf("Providers(api) = %v", providers)
	}
	if got := g.CandidatesFor("api"); len(got) != 1 {
		t.Errorf("CandidatesFor(api) should only hold own ids, got %v", got)
	}

	dep := Dependency{Target: "api", Ranges: version.MustParseRanges(">=2"), Kind: Requires}
	if got := g.Matching(dep); len(got) != 1 || got[0] != impl {
		t.Errorf("Matching(%s) = %v, want [impl]", dep, got)
	}
	if !g.Has("api") || g.Has("missing") {
		t.Error("Has() mismatch")
	}
}

func TestBuildDuplicateWarning(t *testing.T) {
	t.Parallel()

	x1 := cand(t, "x", "1.0", "/mods/x-a", 0)
	x2 := cand(t, "x", "1.0.0", "/mods/x-b", 1)
	x3 := cand(t, "x", "2.0", "/mods/x-c", 2)

	g := Build([]*Candidate{x1, x2, x3})

	warnings := g.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	w := warnings[0]
	if w.Code != WarnDuplicateModule {
		t.Errorf("Code = %q", w.Code)
	}
	if len(w.Candidates) != 2 || w.Candidates[0] != x1 || w.Candidates[1] != x2 {
		t.Errorf("Candidates = %v, want [x1 x2]", w.Candidates)
	}
	if !strings.Contains(w.Message, "/mods/x-a is preferred") {
		t.Errorf("Message = %q", w.Message)
	}
	if got := g.CandidatesFor("x"); len(got) != 3 {
		t.Errorf("duplicates must stay available as alternatives, got %v", got)
	}
}

func TestBuildShadowedBuiltin(t *testing.T) {
	t.Parallel()

	host := NewBuiltin("host", version.MustParse("1.0.0"), 0)
	fake := cand(t, "host", "2.0.0", "/mods/host", 1)
	inner := cand(t, "inner", "1.0", "/mods/host!/inner", 2, withParent(fake))
	other := cand(t, "other", "1.0", "/mods/other", 3)

	g := Build([]*Candidate{host, fake, inner, other})

	if got := g.CandidatesFor("host"); len(got) != 1 || got[0] != host {
		t.Errorf("CandidatesFor(host) = %v, want only the builtin", got)
	}
	if g.Contains(fake) || g.Contains(inner) {
		t.Error("shadowing module and its nested modules must be dropped")
	}
	if !g.Contains(other) {
		t.Error("unrelated module dropped")
	}
	warnings := g.Warnings()
	if len(warnings) != 1 || warnings[0].Code != WarnShadowedBuiltin {
		t.Fatalf("expected one %s warning, got %v", WarnShadowedBuiltin, warnings)
	}
	if w := warnings[0]; len(w.Candidates) != 2 || w.Candidates[0] != host || w.Candidates[1] != fake {
		t.Errorf("Candidates = %v, want [builtin shadow]", w.Candidates)
	}
	if !strings.Contains(warnings[0].Message, "/mods/host uses the id of builtin host") {
		t.Errorf("Message = %q", warnings[0].Message)
	}
}

func TestBuildNesting(t *testing.T) {
	t.Parallel()

	z := cand(t, "z", "1.0", "/mods/z.zip", 0)
	inner := cand(t, "inner", "0.1", "/mods/z.zip!/inner", 1, withParent(z))
	orphanParent := cand(t, "gone", "1.0", "/mods/gone", 2)
	orphan := cand(t, "orphan", "1.0", "/mods/gone!/o", 3, withParent(orphanParent))

	g := Build([]*Candidate{z, inner, orphan})

	if g.Contains(orphan) {
		t.Error("candidate whose parent is absent must be dropped")
	}
	if got := g.Children(z); len(got) != 1 || got[0] != inner {
		t.Errorf("Children(z) = %v", got)
	}
	if got := g.Roots(); len(got) != 1 || got[0] != z {
		t.Errorf("Roots() = %v", got)
	}
	if inner.Depth() != 1 || !inner.IsNested() || inner.Parent() != z {
		t.Errorf("nesting accessors wrong: depth=%d nested=%v", inner.Depth(), inner.IsNested())
	}
}

func TestCandidateImmutability(t *testing.T) {
	t.Parallel()

	deps := []Dependency{{Target: "b", Kind: Requires}}
	provides := []string{"alias"}
	c := New(Spec{ID: "a", Version: version.MustParse("1"), Dependencies: deps, Provides: provides})

	deps[0].Target = "mutated"
	provides[0] = "mutated"
	if c.Dependencies()[0].Target != "b" || c.Provides()[0] != "alias" {
		t.Error("New must copy input slices")
	}

	got := c.Dependencies()
	got[0].Target = "again"
	if c.Dependencies()[0].Target != "b" {
		t.Error("Dependencies() must return a copy")
	}

	if c.Name() != "a" {
		t.Errorf("Name() should default to id, got %q", c.Name())
	}
	if c.Environment() != descriptor.EnvUniversal {
		t.Errorf("Environment() should default to universal, got %q", c.Environment())
	}
}

func TestFromDescriptor(t *testing.T) {
	t.Parallel()

	d := &descriptor.Descriptor{
		ID:          "alpha",
		Name:        "Alpha",
		Version:     version.MustParse("1.2"),
		Environment: descriptor.EnvServer,
		Depends:     []descriptor.Constraint{{Target: "core", Ranges: version.MustParseRanges(">=2")}},
		Recommends:  []descriptor.Constraint{{Target: "extras"}},
		Suggests:    []descriptor.Constraint{{Target: "docs"}},
		Conflicts:   []descriptor.Constraint{{Target: "legacy"}},
		Breaks:      []descriptor.Constraint{{Target: "broken"}},
		Provides:    []string{"alpha-api"},
	}
	c := FromDescriptor(d, "/mods/alpha", nil, 4)

	if c.ID() != "alpha" || c.Name() != "Alpha" || c.Index() != 4 || c.Location() != "/mods/alpha" {
		t.Errorf("unexpected candidate %v", c)
	}
	kinds := make([]DependencyKind, 0, 5)
	for _, dep := range c.Dependencies() {
		kinds = append(kinds, dep.Kind)
	}
	if want := []DependencyKind{Requires, Recommends, Suggests, Conflicts, Breaks}; !slices.Equal(kinds, want) {
		t.Errorf("dependency kinds = %v, want %v", kinds, want)
	}
	if got := c.DependenciesOf(Conflicts); len(got) != 1 || got[0].Target != "legacy" {
		t.Errorf("DependenciesOf(Conflicts) = %v", got)
	}
	if !c.Occupies("alpha-api") || c.Occupies("core") {
		t.Error("Occupies() mismatch")
	}
	if got := c.Occupied(); !slices.Equal(got, []string{"alpha", "alpha-api"}) {
		t.Errorf("Occupied() = %v", got)
	}
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	c := NewBuiltin("host", version.MustParse("1.0.0"), 0)
	if !c.IsBuiltin() || c.IsNested() || len(c.Dependencies()) != 0 {
		t.Errorf("unexpected builtin %v", c)
	}
	if c.Location() != "builtin:host" {
		t.Errorf("Location() = %q", c.Location())
	}
}

func TestDependencyKind(t *testing.T) {
	t.Parallel()

	if !Conflicts.IsNegative() || !Breaks.IsNegative() || Requires.IsNegative() {
		t.Error("IsNegative mismatch")
	}
	if !Recommends.IsSoft() || !Suggests.IsSoft() || Requires.IsSoft() || Breaks.IsSoft() {
		t.Error("IsSoft mismatch")
	}
	dep := Dependency{Target: "core", Ranges: version.MustParseRanges(">=2.0"), Kind: Requires}
	if dep.String() != "requires core >=2.0" {
		t.Errorf("String() = %q", dep.String())
	}
}
