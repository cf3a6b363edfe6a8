// SPDX-License-Identifier: MPL-2.0

// Package engine runs the full pipeline: finders, discovery, graph building
// and resolution, configured by an explicit [ResolutionContext].
//
// The engine performs no console output. Progress is logged through the
// context's logger and observed through an optional [Recorder].
package engine
