// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode compiles data as CUE (or JSON), unifies it with the schema
// definition at schemaPath, validates the result and decodes it into T.
//
// Schema problems are programming errors and are reported as plain errors;
// problems with data are reported as *ValidationError.
func Decode[T any](schema, data []byte, schemaPath string, opts ...Option) (*T, error) {
	o := applyOptions(opts)

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	root, err := lookupSchema(ctx, schema, schemaPath)
	if err != nil {
		return nil, err
	}

	userValue := ctx.CompileBytes(data, cue.Filename(o.filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), o.filename)
	}

	return unifyAndDecode[T](root, userValue, o)
}

// DecodeGo encodes an already-parsed Go value (typically a map produced by a
// non-CUE decoder) into CUE and then follows the same path as Decode.
func DecodeGo[T any](schema []byte, value any, schemaPath string, opts ...Option) (*T, error) {
	o := applyOptions(opts)

	ctx := cuecontext.New()
	root, err := lookupSchema(ctx, schema, schemaPath)
	if err != nil {
		return nil, err
	}

	userValue := ctx.Encode(value)
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), o.filename)
	}

	return unifyAndDecode[T](root, userValue, o)
}

func lookupSchema(ctx *cue.Context, schema []byte, schemaPath string) (cue.Value, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}
	return root, nil
}

func unifyAndDecode[T any](root, userValue cue.Value, o decodeOptions) (*T, error) {
	unified := root.Unify(userValue)

	var validateOpts []cue.Option
	if o.concrete {
		validateOpts = append(validateOpts, cue.Concrete(true))
	}
	if err := unified.Validate(validateOpts...); err != nil {
		return nil, FormatError(err, o.filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, o.filename)
	}
	return &result, nil
}
