// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
)

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error diagnostic.
	SeverityError Severity = "error"
)

const (
	// CodeFinderFailed means a finder stopped with an I/O error.
	CodeFinderFailed DiagnosticCode = "finder_failed"
	// CodeLocationPathInvalid means a location could not be canonicalized.
	CodeLocationPathInvalid DiagnosticCode = "location_path_invalid"
	// CodeLocationUnreadable means a location could not be opened, e.g. a corrupt archive.
	CodeLocationUnreadable DiagnosticCode = "location_unreadable"
	// CodeDescriptorInvalid means a descriptor exists but failed validation.
	CodeDescriptorInvalid DiagnosticCode = "descriptor_invalid"
	// CodeNestedMissing means a declared nested path does not exist in its parent.
	CodeNestedMissing DiagnosticCode = "nested_missing"
	// CodeNestingTooDeep means a nested reference exceeded the depth bound.
	CodeNestingTooDeep DiagnosticCode = "nesting_too_deep"
)

var (
	// ErrInvalidSeverity is returned when a Severity value is not recognized.
	ErrInvalidSeverity = errors.New("invalid diagnostic severity")
	// ErrInvalidDiagnosticCode is returned when a DiagnosticCode value is not recognized.
	ErrInvalidDiagnosticCode = errors.New("invalid diagnostic code")

	validCodes = map[DiagnosticCode]bool{
		CodeFinderFailed:        true,
		CodeLocationPathInvalid: true,
		CodeLocationUnreadable:  true,
		CodeDescriptorInvalid:   true,
		CodeNestedMissing:       true,
		CodeNestingTooDeep:      true,
	}
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// DiagnosticCode is a machine-readable diagnostic identifier.
	DiagnosticCode string

	// Diagnostic represents a structured discovery diagnostic that is returned
	// to callers (rather than written to stderr) for consistent rendering policy.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity
		// Code is a machine-readable identifier (e.g., "descriptor_invalid").
		Code DiagnosticCode
		// Message is the human-readable description.
		Message string
		// Path is the location associated with this diagnostic (optional).
		Path string
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error
	}
)

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityWarning, SeverityError:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidSeverity, string(s))}
	}
}

// String returns the code as a string.
func (c DiagnosticCode) String() string { return string(c) }

// IsValid reports whether c is a known diagnostic code.
func (c DiagnosticCode) IsValid() (bool, []error) {
	if validCodes[c] {
		return true, nil
	}
	return false, []error{fmt.Errorf("%w: %q", ErrInvalidDiagnosticCode, string(c))}
}

// NewDiagnostic creates a diagnostic without a path or cause.
func NewDiagnostic(severity Severity, code DiagnosticCode, message string) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message}
}

// NewDiagnosticWithPath creates a diagnostic attached to a location.
func NewDiagnosticWithPath(severity Severity, code DiagnosticCode, message, path string) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message, Path: path}
}

// NewDiagnosticWithCause creates a diagnostic carrying the error that produced it.
func NewDiagnosticWithCause(severity Severity, code DiagnosticCode, message, path string, cause error) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message, Path: path, Cause: cause}
}

// String renders "warning[code] path: message".
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s[%s]", d.Severity, d.Code)
	if d.Path != "" {
		s += " " + d.Path + ":"
	}
	return s + " " + d.Message
}
