// SPDX-License-Identifier: MPL-2.0

// Package testutil provides fixture builders for tests that need module trees
// on disk or in memory: descriptor sources, directory layouts and zip
// archives. Every helper fails the test immediately on I/O errors.
package testutil
