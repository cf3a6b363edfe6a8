// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"testing"
)

func TestSeverity_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity Severity
		want     bool
		wantErr  bool
	}{
		{SeverityWarning, true, false},
		{SeverityError, true, false},
		{"", false, true},
		{"invalid", false, true},
		{"WARNING", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.severity.IsValid()
			if isValid != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.severity, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("Severity(%q).IsValid() returned no errors, want error", tt.severity)
				}
				if !errors.Is(errs[0], ErrInvalidSeverity) {
					t.Errorf("error should wrap ErrInvalidSeverity, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("Severity(%q).IsValid() returned unexpected errors: %v", tt.severity, errs)
			}
		})
	}
}

func TestDiagnosticCode_IsValid(t *testing.T) {
	t.Parallel()

	validCodes := []DiagnosticCode{
		CodeFinderFailed, CodeLocationPathInvalid, CodeLocationUnreadable,
		CodeDescriptorInvalid, CodeNestedMissing, CodeNestingTooDeep,
	}

	for _, code := range validCodes {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			isValid, errs := code.IsValid()
			if !isValid || len(errs) > 0 {
				t.Errorf("DiagnosticCode(%q).IsValid() = %v, %v", code, isValid, errs)
			}
		})
	}

	invalidCodes := []DiagnosticCode{"", "invalid", "FINDER_FAILED"}
	for _, code := range invalidCodes {
		t.Run("invalid_"+string(code), func(t *testing.T) {
			t.Parallel()
			isValid, errs := code.IsValid()
			if isValid {
				t.Errorf("DiagnosticCode(%q).IsValid() = true, want false", code)
			}
			if len(errs) == 0 {
				t.Fatalf("DiagnosticCode(%q).IsValid() returned no errors, want error", code)
			}
			if !errors.Is(errs[0], ErrInvalidDiagnosticCode) {
				t.Errorf("error should wrap ErrInvalidDiagnosticCode, got: %v", errs[0])
			}
		})
	}
}

func TestNewDiagnosticWithCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	d := NewDiagnosticWithCause(SeverityError, CodeDescriptorInvalid, "bad descriptor", "/mods/a", cause)

	if d.Severity != SeverityError || d.Code != CodeDescriptorInvalid || d.Path != "/mods/a" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if !errors.Is(d.Cause, cause) {
		t.Errorf("Cause = %v, want %v", d.Cause, cause)
	}
	if got, want := d.String(), "error[descriptor_invalid] /mods/a: bad descriptor"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewDiagnostic(t *testing.T) {
	t.Parallel()

	d := NewDiagnostic(SeverityWarning, CodeFinderFailed, "test message")
	if d.Path != "" || d.Cause != nil {
		t.Errorf("unexpected path/cause: %+v", d)
	}
	if got, want := d.String(), "warning[finder_failed] test message"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	p := NewDiagnosticWithPath(SeverityWarning, CodeNestedMissing, "gone", "/x")
	if p.Path != "/x" || p.Message != "gone" {
		t.Errorf("unexpected diagnostic %+v", p)
	}
}
