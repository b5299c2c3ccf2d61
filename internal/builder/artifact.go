package builder

import (
	"os"
	"path/filepath"
	"regexp"
)

// artifactExts is the probe order for produced binaries. First hit wins.
var artifactExts = []string{".hex", ".bin", ".uf2"}

// resolveArtifact looks for the binary produced for sketchFile inside
// buildDir. The toolchain names artifacts after the full sketch filename,
// so blink.ino becomes blink.ino.hex. Returns "" when none of the known
// extensions exist.
func resolveArtifact(buildDir, sketchFile string) string {
	for _, ext := range artifactExts {
		p := filepath.Join(buildDir, sketchFile+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// usedLibraryLine matches the verbose-build lines naming each library the
// compile pulled in.
var usedLibraryLine = regexp.MustCompile(`Using library (.+?) at version (\S+)`)

// usedLibraries extracts "name@version" entries from raw build output in
// encounter order. Duplicates are kept as emitted.
func usedLibraries(raw string) []string {
	var libs []string
	for _, m := range usedLibraryLine.FindAllStringSubmatch(raw, -1) {
		libs = append(libs, m[1]+"@"+m[2])
	}
	return libs
}
