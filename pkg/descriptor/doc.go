// SPDX-License-Identifier: MPL-2.0

// Package descriptor loads module descriptors.
//
// A module location (a directory, an archive, or a directory inside an
// archive) carries one descriptor at its root, written as mod.cue, mod.json
// or mod.toml. All three are validated against the same embedded CUE schema
// and then checked for things the schema cannot express: version syntax,
// range syntax, self-references and nested path hygiene.
//
// Parse and schema failures are returned as *InvalidDescriptorError; a
// location without any descriptor yields ErrNoDescriptor.
package descriptor
