// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of a modsolve run:
//   - descriptor decoding and schema validation (CUE, JSON, TOML)
//   - version and range parsing
//   - discovery of a populated mods directory
//   - resolution of satisfiable and unsatisfiable graphs
//   - the end-to-end engine pipeline
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
