package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noteColor    = color.New(color.FgCyan)
	hintColor    = color.New(color.FgGreen)
)

// Render writes diagnostics to w, one per line, colorizing the severity
// token when colorize is set. A matched hint is printed indented under its
// diagnostic.
func Render(w io.Writer, diags []Diagnostic, colorize bool) {
	for _, d := range diags {
		sev := d.Severity.String()
		if colorize {
			switch d.Severity {
			case SeverityError:
				sev = errorColor.Sprint(sev)
			case SeverityWarning:
				sev = warningColor.Sprint(sev)
			case SeverityNote:
				sev = noteColor.Sprint(sev)
			}
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.Line, d.Column, sev, d.Message)
		if d.Suggestion != "" {
			hint := d.Suggestion
			if colorize {
				hint = hintColor.Sprint(hint)
			}
			fmt.Fprintf(w, "  hint: %s\n", hint)
		}
	}
}
