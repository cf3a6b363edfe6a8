// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/modsolve/modsolve/pkg/cueutil"
	"github.com/modsolve/modsolve/pkg/version"
)

// build performs the checks the CUE schema cannot express and converts the
// raw document into a Descriptor. All issues are collected before returning.
func (r *rawDescriptor) build(file string) (*Descriptor, error) {
	verr := &cueutil.ValidationError{File: file}

	d := &Descriptor{
		SchemaVersion: r.SchemaVersion,
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Authors:       slices.Clone(r.Authors),
		License:       r.License,
		Environment:   EnvUniversal,
	}
	if d.SchemaVersion == 0 {
		d.SchemaVersion = CurrentSchemaVersion
	}
	if d.Name == "" {
		d.Name = d.ID
	}

	v, err := version.Parse(r.Version)
	if err != nil {
		verr.Add("version", "%v", err)
	}
	d.Version = v

	if r.Environment != "" {
		env, err := ParseEnvironment(r.Environment)
		if err != nil {
			verr.Add("environment", "%v", err)
		}
		d.Environment = env
	}

	d.Depends = buildConstraints(verr, "depends", r.Depends)
	d.Recommends = buildConstraints(verr, "recommends", r.Recommends)
	d.Suggests = buildConstraints(verr, "suggests", r.Suggests)
	d.Conflicts = buildConstraints(verr, "conflicts", r.Conflicts)
	d.Breaks = buildConstraints(verr, "breaks", r.Breaks)

	for _, field := range []struct {
		name string
		list []Constraint
	}{{"depends", d.Depends}, {"recommends", d.Recommends}, {"suggests", d.Suggests}} {
		for _, c := range field.list {
			if c.Target == d.ID {
				verr.Add(field.name+"."+c.Target, "a module cannot depend on itself")
			}
		}
	}

	seen := make(map[string]bool, len(r.Provides))
	for i, p := range r.Provides {
		path := fmt.Sprintf("provides[%d]", i)
		switch {
		case p == d.ID:
			verr.Add(path, "%q is the module's own id", p)
		case seen[p]:
			verr.Add(path, "%q is listed more than once", p)
		default:
			seen[p] = true
			d.Provides = append(d.Provides, p)
		}
	}

	seenNested := make(map[string]bool, len(r.Nested))
	for i, n := range r.Nested {
		path := fmt.Sprintf("nested[%d]", i)
		clean := strings.TrimPrefix(n, "./")
		switch {
		case !fs.ValidPath(clean) || clean == ".":
			verr.Add(path, "%q must be a relative slash-separated path inside the module", n)
		case seenNested[clean]:
			verr.Add(path, "%q is listed more than once", n)
		default:
			seenNested[clean] = true
			d.Nested = append(d.Nested, clean)
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return d, nil
}

// buildConstraints converts an id → range(s) map into constraints sorted by
// target id.
func buildConstraints(verr *cueutil.ValidationError, field string, m map[string]any) []Constraint {
	if len(m) == 0 {
		return nil
	}
	targets := make([]string, 0, len(m))
	for target := range m {
		targets = append(targets, target)
	}
	slices.Sort(targets)

	out := make([]Constraint, 0, len(targets))
	for _, target := range targets {
		path := field + "." + target
		raw, ok := rangeStrings(m[target])
		if !ok {
			verr.Add(path, "range must be a string or a list of strings")
			continue
		}
		ranges, err := version.ParseRanges(raw)
		if err != nil {
			verr.Add(path, "%v", err)
			continue
		}
		out = append(out, Constraint{Target: target, Ranges: ranges})
	}
	return out
}

func rangeStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
