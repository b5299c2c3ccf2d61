// Package diag turns raw compiler output into structured diagnostics.
//
// The toolchain is an opaque external program; all we get back is text.
// This package recognizes the gcc/clang "file:line:col: severity: message"
// line shapes, attaches a fix hint where a known message pattern matches,
// and leaves everything else alone.
package diag

import "fmt"

// Diagnostic is one structured finding extracted from compiler output.
// Suggestion is empty when no hint rule matched. Values are never modified
// after Parse returns them.
type Diagnostic struct {
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// HasErrors reports whether diags contains at least one error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity subset of diags in input order.
func Errors(diags []Diagnostic) []Diagnostic {
	return filter(diags, SeverityError)
}

// Warnings returns the warning-severity subset of diags in input order.
func Warnings(diags []Diagnostic) []Diagnostic {
	return filter(diags, SeverityWarning)
}

func filter(diags []Diagnostic, sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
