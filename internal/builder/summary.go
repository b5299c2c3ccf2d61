package builder

import (
	"encoding/json"
	"strings"
)

// compileSummary is the structured document the toolchain prints on stdout
// when machine-readable output is requested. The compiler's own streams ride
// inside it. Toolchains that answer with plain text instead simply produce
// no summary; nil fields distinguish "key absent" from "present but empty".
type compileSummary struct {
	CompilerOut *string `json:"compiler_out"`
	CompilerErr *string `json:"compiler_err"`
}

func (s compileSummary) out() string {
	if s.CompilerOut == nil {
		return ""
	}
	return *s.CompilerOut
}

func (s compileSummary) err() string {
	if s.CompilerErr == nil {
		return ""
	}
	return *s.CompilerErr
}

// decodeSummary tries to read stdout as a compile summary. Anything that is
// not a JSON object carrying at least one of the compiler streams reports
// false, and the caller falls back to treating stdout as plain log text.
func decodeSummary(stdout string) (compileSummary, bool) {
	trimmed := strings.TrimSpace(stdout)
	if !strings.HasPrefix(trimmed, "{") {
		return compileSummary{}, false
	}
	var s compileSummary
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return compileSummary{}, false
	}
	if s.CompilerOut == nil && s.CompilerErr == nil {
		return compileSummary{}, false
	}
	return s, true
}

// joinStreams concatenates the non-empty streams with single newlines, the
// shape users expect the raw log in.
func joinStreams(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
