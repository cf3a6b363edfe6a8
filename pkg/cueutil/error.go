// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrValidation is the sentinel error wrapped by ValidationError.
var ErrValidation = errors.New("validation failed")

type (
	// Issue is a single problem found while validating a document.
	Issue struct {
		// Path is the JSON-path of the offending field (e.g. "depends.core").
		// Empty for document-level problems.
		Path string

		// Message describes the problem.
		Message string
	}

	// ValidationError collects the issues found in one document.
	ValidationError struct {
		// File is the document being validated.
		File string

		// Issues lists every problem found, in report order.
		Issues []Issue
	}
)

// String renders "path: message" or just the message.
func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch len(e.Issues) {
	case 0:
		return fmt.Sprintf("%s: %s", e.File, ErrValidation)
	case 1:
		return fmt.Sprintf("%s: %s", e.File, e.Issues[0])
	}
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		lines[i] = is.String()
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation so callers can use errors.Is for programmatic detection.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends an issue.
func (e *ValidationError) Add(path, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e when it holds at least one issue, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// FormatError converts a CUE error into a *ValidationError with one issue per
// underlying CUE error, each carrying the JSON-path of the offending field.
// Non-CUE errors are wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	verr := &ValidationError{File: file}
	for _, e := range cueErrs {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		// CUE sometimes repeats the path at the start of the message.
		if path != "" && strings.HasPrefix(msg, path) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		verr.Issues = append(verr.Issues, Issue{Path: path, Message: msg})
	}
	return verr
}

// formatPath turns CUE's flat path (["depends", "0", "x"]) into JSON-path
// notation ("depends[0].x").
func formatPath(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error when data is larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", file, len(data), maxSize)
	}
	return nil
}
