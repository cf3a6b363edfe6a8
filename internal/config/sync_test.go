// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// cueFields returns the regular field names of a CUE struct definition.
func cueFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	fields := make(map[string]bool)
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}
		fields[strings.TrimSuffix(sel.String(), "?")] = true
	}
	return fields
}

// goJSONTags returns the json tag names of a struct's exported fields,
// skipping fields tagged "-".
func goJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}
	fields := make(map[string]bool)
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = true
	}
	return fields
}

// TestSchemaSync keeps the Go structs and the embedded CUE schema aligned,
// so a field added on one side cannot be silently ignored on the other.
func TestSchemaSync(t *testing.T) {
	t.Parallel()

	schema := cuecontext.New().CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}

	tests := []struct {
		def string
		typ reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#Discovery", reflect.TypeFor[DiscoveryConfig]()},
		{"#Resolver", reflect.TypeFor[ResolverConfig]()},
		{"#Host", reflect.TypeFor[HostConfig]()},
		{"#Builtin", reflect.TypeFor[BuiltinEntry]()},
		{"#UI", reflect.TypeFor[UIConfig]()},
	}
	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			t.Parallel()

			def := schema.LookupPath(cue.ParsePath(tt.def))
			if def.Err() != nil {
				t.Fatalf("lookup %s: %v", tt.def, def.Err())
			}
			fromCUE, fromGo := cueFields(t, def), goJSONTags(t, tt.typ)
			for f := range fromCUE {
				if !fromGo[f] {
					t.Errorf("CUE field %s.%s has no Go json tag", tt.def, f)
				}
			}
			for f := range fromGo {
				if !fromCUE[f] {
					t.Errorf("Go json tag %q of %s is missing from %s", f, tt.typ.Name(), tt.def)
				}
			}
		})
	}
}

// TestSchemaConstraints checks values the schema must reject.
func TestSchemaConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cue     string
		wantErr bool
	}{
		{"empty", ``, false},
		{"valid environment", `environment: "server"`, false},
		{"unknown environment", `environment: "desktop"`, true},
		{"unknown field", `mod_dir: "x"`, true},
		{"bad tie break", `resolver: tie_break: "oldest"`, true},
		{"negative workers", `discovery: workers: -1`, true},
		{"nesting depth zero", `discovery: max_nesting_depth: 0`, true},
		{"builtin bad id", `builtins: [{id: "A", version: "1.0"}]`, true},
		{"ignore list", `ignore: ["*.bak", "old-*"]`, false},
		{"color scheme", `ui: color_scheme: "sepia"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := cuecontext.New()
			schema := ctx.CompileString(configSchema).LookupPath(cue.ParsePath("#Config"))
			user := ctx.CompileString(tt.cue)
			err := user.Err()
			if err == nil {
				err = schema.Unify(user).Validate(cue.Concrete(false))
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("validate %q: err = %v, wantErr %v", tt.cue, err, tt.wantErr)
			}
		})
	}
}
