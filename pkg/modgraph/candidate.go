// SPDX-License-Identifier: MPL-2.0

package modgraph

import (
	"slices"

	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// Requires: the candidate cannot be selected unless a match is selected.
	Requires DependencyKind = iota
	// Recommends: soft; an unmet recommendation is reported as a warning.
	Recommends
	// Suggests: soft; an unmet suggestion is informational only.
	Suggests
	// Conflicts: the candidate cannot be selected together with a match.
	Conflicts
	// Breaks: like Conflicts, reported as a hard incompatibility.
	Breaks
)

type (
	// DependencyKind classifies a Dependency.
	DependencyKind int

	// Dependency is one declared relation from a candidate to a module id.
	Dependency struct {
		Target string
		Ranges version.Ranges
		Kind   DependencyKind
	}

	// Spec holds the fields used to construct a Candidate.
	Spec struct {
		ID           string
		Name         string
		Version      version.Version
		Dependencies []Dependency
		Provides     []string
		Environment  descriptor.Environment
		// Location is the canonical identity of the physical instance.
		Location string
		// Parent is the candidate this one is packaged inside, nil for roots.
		Parent *Candidate
		// Index is the discovery order index.
		Index   int
		Builtin bool
	}

	// Candidate is one discovered physical module instance. It is immutable:
	// accessors return copies of slice fields.
	Candidate struct {
		id       string
		name     string
		version  version.Version
		deps     []Dependency
		provides []string
		env      descriptor.Environment
		location string
		parent   *Candidate
		depth    int
		index    int
		builtin  bool
	}
)

// String returns the lowercase kind name.
func (k DependencyKind) String() string {
	switch k {
	case Requires:
		return "requires"
	case Recommends:
		return "recommends"
	case Suggests:
		return "suggests"
	case Conflicts:
		return "conflicts"
	case Breaks:
		return "breaks"
	default:
		return "unknown"
	}
}

// IsNegative reports whether the kind forbids co-selection.
func (k DependencyKind) IsNegative() bool { return k == Conflicts || k == Breaks }

// IsSoft reports whether the kind never blocks selection.
func (k DependencyKind) IsSoft() bool { return k == Recommends || k == Suggests }

// Matches reports whether c occupies the target id with a version inside
// the ranges.
func (d Dependency) Matches(c *Candidate) bool {
	return c.Occupies(d.Target) && d.Ranges.Test(c.version)
}

// String renders "requires core >=2.0".
func (d Dependency) String() string {
	return d.Kind.String() + " " + d.Target + " " + d.Ranges.String()
}

// New creates a candidate from spec. Slices are copied.
func New(spec Spec) *Candidate {
	c := &Candidate{
		id:       spec.ID,
		name:     spec.Name,
		version:  spec.Version,
		deps:     slices.Clone(spec.Dependencies),
		provides: slices.Clone(spec.Provides),
		env:      spec.Environment,
		location: spec.Location,
		parent:   spec.Parent,
		index:    spec.Index,
		builtin:  spec.Builtin,
	}
	if c.name == "" {
		c.name = c.id
	}
	if c.env == "" {
		c.env = descriptor.EnvUniversal
	}
	if c.parent != nil {
		c.depth = c.parent.depth + 1
	}
	return c
}

// FromDescriptor creates a candidate for a loaded descriptor found at location.
func FromDescriptor(d *descriptor.Descriptor, location string, parent *Candidate, index int) *Candidate {
	deps := make([]Dependency, 0, len(d.Depends)+len(d.Recommends)+len(d.Suggests)+len(d.Conflicts)+len(d.Breaks))
	for _, group := range []struct {
		kind DependencyKind
		list []descriptor.Constraint
	}{
		{Requires, d.Depends},
		{Recommends, d.Recommends},
		{Suggests, d.Suggests},
		{Conflicts, d.Conflicts},
		{Breaks, d.Breaks},
	} {
		for _, c := range group.list {
			deps = append(deps, Dependency{Target: c.Target, Ranges: c.Ranges, Kind: group.kind})
		}
	}
	return New(Spec{
		ID:           d.ID,
		Name:         d.Name,
		Version:      d.Version,
		Dependencies: deps,
		Provides:     d.Provides,
		Environment:  d.Environment,
		Location:     location,
		Parent:       parent,
		Index:        index,
	})
}

// NewBuiltin creates a synthetic always-selected candidate with no dependencies.
func NewBuiltin(id string, v version.Version, index int) *Candidate {
	return New(Spec{
		ID:       id,
		Version:  v,
		Location: "builtin:" + id,
		Index:    index,
		Builtin:  true,
	})
}

// ID returns the module id.
func (c *Candidate) ID() string { return c.id }

// Name returns the display name, defaulting to the id.
func (c *Candidate) Name() string { return c.name }

// Version returns the module version.
func (c *Candidate) Version() version.Version { return c.version }

// Environment returns the environment restriction.
func (c *Candidate) Environment() descriptor.Environment { return c.env }

// Location returns the canonical location of the physical instance.
func (c *Candidate) Location() string { return c.location }

// Parent returns the enclosing candidate, or nil for roots.
func (c *Candidate) Parent() *Candidate { return c.parent }

// IsNested reports whether the candidate is packaged inside another.
func (c *Candidate) IsNested() bool { return c.parent != nil }

// Depth returns the nesting depth; roots are at 0.
func (c *Candidate) Depth() int { return c.depth }

// Index returns the discovery order index.
func (c *Candidate) Index() int { return c.index }

// IsBuiltin reports whether the candidate is synthetic.
func (c *Candidate) IsBuiltin() bool { return c.builtin }

// Dependencies returns a copy of all declared dependencies.
func (c *Candidate) Dependencies() []Dependency { return slices.Clone(c.deps) }

// DependenciesOf returns the dependencies of one kind in declaration order.
func (c *Candidate) DependenciesOf(kind DependencyKind) []Dependency {
	var out []Dependency
	for _, d := range c.deps {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Provides returns a copy of the provided alias ids.
func (c *Candidate) Provides() []string { return slices.Clone(c.provides) }

// Occupies reports whether id is the candidate's own id or a provided alias.
func (c *Candidate) Occupies(id string) bool {
	return c.id == id || slices.Contains(c.provides, id)
}

// Occupied returns the own id followed by provided aliases.
func (c *Candidate) Occupied() []string {
	out := make([]string, 0, 1+len(c.provides))
	out = append(out, c.id)
	return append(out, c.provides...)
}

// String renders "id 1.2.3".
func (c *Candidate) String() string {
	return c.id + " " + c.version.String()
}
