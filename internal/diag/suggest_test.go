package diag

import (
	"strings"
	"testing"
)

func TestSuggestionFor(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantHint string // substring of the expected hint, "" means no hint
	}{
		{"undeclared identifier", "'ledPin' was not declared in this scope", "spelling"},
		{"missing semicolon", "expected ';' before 'digitalWrite'", "semicolon"},
		{"unknown type", "'Servo' does not name a type", "header"},
		{"missing include", "Servo.h: No such file or directory", "Install the library"},
		{"bare include directive", `#include expects "FILENAME" or <FILENAME>`, "filename"},
		{"unbalanced braces", "expected declaration before '}' token", "braces"},
		{"duplicate definition", "redefinition of 'void setup()'", "more than once"},
		{"no rule matches", "something entirely unexpected happened", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suggestionFor(tt.message)
			if tt.wantHint == "" {
				if got != "" {
					t.Errorf("expected no hint, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.wantHint) {
				t.Errorf("hint %q does not mention %q", got, tt.wantHint)
			}
		})
	}
}

func TestSuggestionFirstMatchWins(t *testing.T) {
	// Message matching both the undeclared rule and the semicolon rule must
	// resolve to the earlier rule.
	msg := "'foo' was not declared in this scope; expected ';' before '}' token"
	got := suggestionFor(msg)
	want := suggestionFor("'foo' was not declared in this scope")
	if got != want {
		t.Errorf("first rule did not win: got %q, want %q", got, want)
	}
}
