// SPDX-License-Identifier: MPL-2.0

// Package issue holds the user-facing side of errors: a catalog of markdown
// issues rendered with glamour, actionable errors carrying suggestions, and
// the markdown explanation of a failed resolution.
package issue
