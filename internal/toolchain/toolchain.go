// Package toolchain wraps the external CLI that compiles and uploads
// sketches. Every call is one short-lived subprocess; its outcome comes
// back as a single Result so callers never deal with a half-finished
// invocation.
package toolchain

import (
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"
)

// DefaultBin is the toolchain binary looked up on PATH when no explicit
// path is configured.
const DefaultBin = "arduino-cli"

// Result is the complete outcome of one toolchain invocation. When the
// process could not be started at all (binary missing, permission denied),
// SpawnErr is set and the other fields are zero; a non-zero ExitCode means
// the process ran and failed.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	SpawnErr error
}

// Ran reports whether the process was actually started.
func (r Result) Ran() bool { return r.SpawnErr == nil }

// OK reports a clean run: spawned and exited zero.
func (r Result) OK() bool { return r.SpawnErr == nil && r.ExitCode == 0 }

// Combined returns stdout followed by stderr, the way the raw log is shown
// to users.
func (r Result) Combined() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner executes one toolchain command. Implementations must never panic
// on spawn failure; it is reported through Result.SpawnErr.
type Runner interface {
	Run(ctx context.Context, args ...string) Result
}

// CLI runs the real toolchain binary.
type CLI struct {
	Bin       string   // binary name or path, DefaultBin when empty
	ExtraArgs []string // prepended to every invocation (e.g. --config-file)
	Dir       string   // working directory, inherited when empty
}

// New returns a CLI for the given binary. An empty bin selects DefaultBin.
func New(bin string) *CLI {
	if bin == "" {
		bin = DefaultBin
	}
	return &CLI{Bin: bin}
}

// Run spawns the toolchain with the given arguments and waits for it to
// finish, capturing stdout and stderr separately.
func (c *CLI) Run(ctx context.Context, args ...string) Result {
	bin := c.Bin
	if bin == "" {
		bin = DefaultBin
	}
	full := append(append([]string{}, c.ExtraArgs...), args...)

	log.Printf("[toolchain] run: %s %s", bin, strings.Join(full, " "))

	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Dir = c.Dir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.SpawnErr = err
			log.Printf("[toolchain] spawn failed: %v", err)
			return res
		}
	}
	if res.ExitCode != 0 {
		log.Printf("[toolchain] %s exited with code %d", bin, res.ExitCode)
	}
	return res
}
