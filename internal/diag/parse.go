package diag

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Line shapes emitted by gcc/clang style toolchains. The column form is
// tried first; the no-column form covers preprocessor and linker lines
// that omit it.
var (
	lineWithCol = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(error|warning|note):\s*(.*)$`)
	lineNoCol   = regexp.MustCompile(`^(.+?):(\d+):\s*(error|warning|note):\s*(.*)$`)
)

// Parse extracts diagnostics from raw toolchain output, one per matching
// line, preserving input order. Lines that match neither shape, or carry a
// severity token outside {error, warning, note}, produce nothing; build
// logs are mostly noise and that is expected. Absolute paths under the
// current working directory are rewritten relative to it.
func Parse(raw string) []Diagnostic {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}
	return ParseIn(raw, wd)
}

// ParseIn is Parse with an explicit working directory for path rewriting.
func ParseIn(raw, workDir string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		d, ok := parseLine(line)
		if !ok {
			continue
		}
		d.File = relativize(d.File, workDir)
		d.Suggestion = suggestionFor(d.Message)
		diags = append(diags, d)
	}
	return diags
}

func parseLine(line string) (Diagnostic, bool) {
	if m := lineWithCol.FindStringSubmatch(line); m != nil {
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		sev, _ := ParseSeverity(m[4])
		return Diagnostic{File: m[1], Line: lineNo, Column: col, Severity: sev, Message: m[5]}, true
	}
	if m := lineNoCol.FindStringSubmatch(line); m != nil {
		lineNo, _ := strconv.Atoi(m[2])
		sev, _ := ParseSeverity(m[3])
		return Diagnostic{File: m[1], Line: lineNo, Column: 1, Severity: sev, Message: m[4]}, true
	}
	return Diagnostic{}, false
}

// relativize rewrites path, when absolute and under workDir, as a
// workDir-relative path. Anything else comes back unchanged.
func relativize(path, workDir string) string {
	if workDir == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(workDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
