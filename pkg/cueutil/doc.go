// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE decoding utilities.
//
// Both module descriptors and the configuration file follow the same flow:
//
//  1. Compile the embedded schema and look up its root definition
//  2. Compile (or encode) the user data and unify it with the schema
//  3. Validate and decode into a Go struct
//
// Data may arrive as CUE source (JSON is accepted as well, being a subset of
// CUE) via [Decode], or as an already-parsed Go value such as the map produced
// by a TOML decoder via [DecodeGo].
//
// # Usage
//
//	//go:embed descriptor_schema.cue
//	var schema []byte
//
//	raw, err := cueutil.Decode[rawDescriptor](schema, data, "#Descriptor",
//	    cueutil.WithFilename("mod.cue"))
//	if err != nil {
//	    return nil, err // *cueutil.ValidationError with per-field issues
//	}
package cueutil
