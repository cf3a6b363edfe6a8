// SPDX-License-Identifier: MPL-2.0

// Package modgraph holds the candidate model and the dependency graph.
//
// A [Candidate] is one physical module instance: an id, a version, declared
// dependencies, provided aliases and its origin. The [Graph] groups
// candidates by the ids they occupy, keeping every alternative so that the
// resolver can try other versions when the preferred one does not fit.
package modgraph
