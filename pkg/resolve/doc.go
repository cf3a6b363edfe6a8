// SPDX-License-Identifier: MPL-2.0

// Package resolve selects a consistent set of modules from a dependency graph.
//
// Every id that has a top-level candidate gets exactly one selected
// candidate; ids whose candidates are all nested inside other modules may
// stay empty, and a nested candidate is only selectable together with its
// parent. REQUIRES edges must be satisfied by a selected candidate in range,
// CONFLICTS and BREAKS edges must not match any selected candidate, and a
// module id (own or provided) is occupied by at most one selection.
// RECOMMENDS and SUGGESTS never block and are reported when unmet.
//
// The search is a deterministic backtracking loop with unit propagation.
// Alternatives for an id are tried in [TieBreak] order. When no selection
// exists, the edges that caused every branch to fail are shrunk to a minimal
// set and rendered as [Conflict] values citing concrete candidates.
package resolve
