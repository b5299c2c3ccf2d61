// Package builder drives compile and upload runs through the external
// toolchain and turns their raw outcome into structured results.
package builder

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/diag"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/toolchain"
)

// CompileResult is the outcome of one compile run. Diagnostics preserve
// toolchain output order; ArtifactPath is empty when no binary was found.
type CompileResult struct {
	Success       bool              `json:"success"`
	RawOutput     string            `json:"rawOutput"`
	Diagnostics   []diag.Diagnostic `json:"diagnostics"`
	ArtifactPath  string            `json:"artifactPath,omitempty"`
	UsedLibraries []string          `json:"usedLibraries,omitempty"`
}

// UploadResult is the outcome of one upload run.
type UploadResult struct {
	Success     bool              `json:"success"`
	RawOutput   string            `json:"rawOutput"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// Builder runs compiles and uploads. Runs touching the same sketch are
// strictly serialized; different sketches proceed independently.
type Builder struct {
	runner toolchain.Runner

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	cbMu       sync.Mutex
	onProgress func(stage string)
	onOutput   func(chunk string)
}

// New returns a Builder backed by the given toolchain runner.
func New(runner toolchain.Runner) *Builder {
	return &Builder{
		runner: runner,
		locks:  make(map[string]*sync.Mutex),
	}
}

// OnProgress registers the build stage listener, replacing any previous
// one. Nil clears it.
func (b *Builder) OnProgress(fn func(stage string)) {
	b.cbMu.Lock()
	b.onProgress = fn
	b.cbMu.Unlock()
}

// OnOutput registers the raw build output listener, replacing any previous
// one. Nil clears it.
func (b *Builder) OnOutput(fn func(chunk string)) {
	b.cbMu.Lock()
	b.onOutput = fn
	b.cbMu.Unlock()
}

func (b *Builder) progress(stage string) {
	b.cbMu.Lock()
	fn := b.onProgress
	b.cbMu.Unlock()
	if fn != nil {
		fn(stage)
	}
}

func (b *Builder) output(chunk string) {
	if chunk == "" {
		return
	}
	b.cbMu.Lock()
	fn := b.onOutput
	b.cbMu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

// sketchLock returns the mutex serializing runs for one sketch path. Keys
// are canonicalized so "./blink.ino" and its absolute form share a lock.
func (b *Builder) sketchLock(sketchPath string) *sync.Mutex {
	key := filepath.Clean(sketchPath)
	if abs, err := filepath.Abs(sketchPath); err == nil {
		key = abs
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[key] = lock
	}
	return lock
}

// BuildDir returns the build output directory for a sketch, a build/
// subdirectory next to it. Deriving the directory from the sketch path
// keeps concurrent builds of different sketches apart on disk.
func BuildDir(sketchPath string) string {
	return filepath.Join(filepath.Dir(sketchPath), "build")
}

// Compile builds sketchPath for boardID and resolves the produced binary.
// Failures never come back as errors: the result carries Success false and
// diagnostics explaining why.
func (b *Builder) Compile(ctx context.Context, sketchPath, boardID string) CompileResult {
	lock := b.sketchLock(sketchPath)
	lock.Lock()
	defer lock.Unlock()

	name := filepath.Base(sketchPath)
	b.progress("compiling " + name)

	buildDir := BuildDir(sketchPath)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		log.Printf("[builder] cannot create %s: %v", buildDir, err)
		b.progress("compile failed")
		return CompileResult{Diagnostics: []diag.Diagnostic{syntheticFailure(sketchPath, err)}}
	}

	res := b.runner.Run(ctx, "compile",
		"--fqbn", boardID,
		"--build-path", buildDir,
		"--output-dir", buildDir,
		"--verbose", "--format", "json",
		sketchPath)
	if !res.Ran() {
		b.progress("compile failed")
		return CompileResult{Diagnostics: []diag.Diagnostic{syntheticFailure(sketchPath, res.SpawnErr)}}
	}

	// Machine-readable mode wraps the compiler streams in a JSON summary.
	// Older toolchains print plain text regardless of the flag; then stdout
	// is the log and stderr the error stream, as-is.
	raw := res.Combined()
	errText := res.Stderr
	if sum, ok := decodeSummary(res.Stdout); ok {
		raw = joinStreams(sum.out(), sum.err(), res.Stderr)
		errText = joinStreams(sum.err(), res.Stderr)
	}
	b.output(raw)

	out := CompileResult{
		Success:       res.ExitCode == 0,
		RawOutput:     raw,
		Diagnostics:   diag.Parse(errText),
		UsedLibraries: usedLibraries(raw),
	}
	if out.Success {
		out.ArtifactPath = resolveArtifact(buildDir, name)
		b.progress("compiled " + name)
	} else {
		b.progress("compile failed")
	}
	log.Printf("[builder] compile %s: success=%v diagnostics=%d artifact=%q",
		name, out.Success, len(out.Diagnostics), out.ArtifactPath)
	return out
}

// uploadFailedMessage is deliberately generic. Upload output is not parsed
// line by line the way compile output is; a failed transfer almost always
// means a wrong port or an unplugged board.
const uploadFailedMessage = "upload failed, check the device connection and port"

// Upload flashes the compiled sketch to the device at portAddress.
func (b *Builder) Upload(ctx context.Context, sketchPath, boardID, portAddress string) UploadResult {
	lock := b.sketchLock(sketchPath)
	lock.Lock()
	defer lock.Unlock()

	name := filepath.Base(sketchPath)
	b.progress("uploading " + name)

	res := b.runner.Run(ctx, "upload",
		"--fqbn", boardID,
		"--port", portAddress,
		sketchPath)
	if !res.Ran() {
		b.progress("upload failed")
		return UploadResult{Diagnostics: []diag.Diagnostic{syntheticFailure(sketchPath, res.SpawnErr)}}
	}

	raw := res.Combined()
	b.output(raw)

	if res.ExitCode != 0 {
		b.progress("upload failed")
		log.Printf("[builder] upload %s to %s: exit code %d", name, portAddress, res.ExitCode)
		return UploadResult{
			RawOutput: raw,
			Diagnostics: []diag.Diagnostic{{
				File:     sketchPath,
				Line:     1,
				Column:   1,
				Severity: diag.SeverityError,
				Message:  uploadFailedMessage,
			}},
		}
	}

	b.progress("uploaded " + name)
	log.Printf("[builder] upload %s to %s: ok", name, portAddress)
	return UploadResult{Success: true, RawOutput: raw}
}

// syntheticFailure reports a process that never started as a single
// diagnostic pinned to the top of the sketch.
func syntheticFailure(sketchPath string, err error) diag.Diagnostic {
	return diag.Diagnostic{
		File:     sketchPath,
		Line:     1,
		Column:   1,
		Severity: diag.SeverityError,
		Message:  err.Error(),
	}
}
