package diag

import (
	"encoding/json"
	"fmt"
)

// Severity classifies a diagnostic line.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

// String returns the lowercase token as it appears in compiler output.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a compiler severity token to a Severity. Tokens other
// than error, warning and note are rejected.
func ParseSeverity(tok string) (Severity, bool) {
	switch tok {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "note":
		return SeverityNote, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the severity as its string token.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the severity from its string token.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var tok string
	if err := json.Unmarshal(data, &tok); err != nil {
		return err
	}
	sev, ok := ParseSeverity(tok)
	if !ok {
		return fmt.Errorf("diag: unknown severity %q", tok)
	}
	*s = sev
	return nil
}
