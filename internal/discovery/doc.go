// SPDX-License-Identifier: MPL-2.0

// Package discovery finds module candidates and loads their descriptors.
//
// Finders enumerate locations (directories, zip/jar archives, in-memory
// archives) concurrently. The Discoverer canonicalizes and deduplicates the
// locations, loads each descriptor on a bounded worker pool, follows nested
// references up to a fixed depth and filters modules by environment.
// Candidates are numbered deterministically: builtins first, then every
// top-level location in (finder, path) order, each followed by the modules
// nested inside it in pre-order.
//
// Per-location problems never fail a run. They are reported as Diagnostic
// values and the location is listed as a NonModule.
package discovery
