// Package registry queries the toolchain for known boards, attached ports
// and installable libraries, normalizing its JSON output.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/toolchain"
)

// Board describes one compile target known to the toolchain.
type Board struct {
	FQBN         string `json:"fqbn"`
	Name         string `json:"name"`
	PlatformID   string `json:"platformId,omitempty"`
	PlatformName string `json:"platformName,omitempty"`
}

// Port describes one communication port the toolchain detected.
// CandidateBoards is empty when detection could not tie a board to it.
type Port struct {
	Address         string  `json:"address"`
	Label           string  `json:"label"`
	Protocol        string  `json:"protocol"`
	CandidateBoards []Board `json:"candidateBoards,omitempty"`
}

// Library describes one entry from the library index.
type Library struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// Registry lists boards, ports and libraries. Every listing is fail-open:
// whatever goes wrong, the caller gets an empty list and the cause lands
// in the log. Listing UIs must never crash over a broken toolchain.
type Registry struct {
	runner toolchain.Runner
}

// New returns a Registry backed by the given toolchain runner.
func New(runner toolchain.Runner) *Registry {
	return &Registry{runner: runner}
}

// listing runs one toolchain listing command and applies the fail-open
// policy: spawn failures, non-zero exits and empty output all come back
// as ("", false).
func (r *Registry) listing(ctx context.Context, args ...string) (string, bool) {
	res := r.runner.Run(ctx, args...)
	if !res.Ran() {
		log.Printf("[registry] %s: %v", strings.Join(args, " "), res.SpawnErr)
		return "", false
	}
	if res.ExitCode != 0 {
		log.Printf("[registry] %s: exit code %d", strings.Join(args, " "), res.ExitCode)
		return "", false
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", false
	}
	return out, true
}

// ============================================================================
// Boards
// ============================================================================

type boardsPayload struct {
	Boards []boardEntry `json:"boards"`
}

type boardEntry struct {
	Name     string `json:"name"`
	FQBN     string `json:"fqbn"`
	Platform *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"platform"`
}

func (e boardEntry) toBoard() Board {
	b := Board{FQBN: e.FQBN, Name: e.Name}
	if e.Platform != nil {
		b.PlatformID = e.Platform.ID
		b.PlatformName = e.Platform.Name
	}
	if b.PlatformID == "" {
		b.PlatformID = platformFromFQBN(e.FQBN)
	}
	return b
}

// platformFromFQBN derives the vendor:arch platform id from a
// vendor:arch:board identifier.
func platformFromFQBN(fqbn string) string {
	parts := strings.Split(fqbn, ":")
	if len(parts) < 3 {
		return ""
	}
	return parts[0] + ":" + parts[1]
}

// Boards lists every board the installed platforms can build for.
func (r *Registry) Boards(ctx context.Context) []Board {
	out, ok := r.listing(ctx, "board", "listall", "--format", "json")
	if !ok {
		return []Board{}
	}
	var payload boardsPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		log.Printf("[registry] board listall: bad JSON: %v", err)
		return []Board{}
	}
	boards := make([]Board, 0, len(payload.Boards))
	for _, e := range payload.Boards {
		boards = append(boards, e.toBoard())
	}
	return boards
}

// ============================================================================
// Ports
// ============================================================================

type portInfo struct {
	Address       string `json:"address"`
	Label         string `json:"label"`
	Protocol      string `json:"protocol"`
	ProtocolLabel string `json:"protocol_label"`
}

type portEntry struct {
	Address        string       `json:"address"`
	Label          string       `json:"label"`
	Protocol       string       `json:"protocol"`
	ProtocolLabel  string       `json:"protocol_label"`
	Boards         []boardEntry `json:"boards"`
	MatchingBoards []boardEntry `json:"matching_boards"`
	Port           *portInfo    `json:"port"`
}

func (e portEntry) toPort() Port {
	info := portInfo{Address: e.Address, Label: e.Label, Protocol: e.Protocol, ProtocolLabel: e.ProtocolLabel}
	if e.Port != nil {
		// Newer toolchains nest the port description.
		info = *e.Port
	}
	p := Port{Address: info.Address, Label: info.Label, Protocol: info.Protocol}
	if p.Label == "" {
		p.Label = info.ProtocolLabel
	}
	if p.Label == "" {
		p.Label = p.Address
	}
	entries := e.Boards
	if len(entries) == 0 {
		entries = e.MatchingBoards
	}
	for _, b := range entries {
		p.CandidateBoards = append(p.CandidateBoards, b.toBoard())
	}
	return p
}

// decodePorts accepts both the bare-array and the detected_ports envelope
// layouts the toolchain has used across versions.
func decodePorts(data []byte) ([]portEntry, error) {
	var entries []portEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	var envelope struct {
		DetectedPorts []portEntry `json:"detected_ports"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	return envelope.DetectedPorts, nil
}

// Ports lists communication ports with something currently attached.
func (r *Registry) Ports(ctx context.Context) []Port {
	out, ok := r.listing(ctx, "board", "list", "--format", "json")
	if !ok {
		return []Port{}
	}
	entries, err := decodePorts([]byte(out))
	if err != nil {
		log.Printf("[registry] board list: bad JSON: %v", err)
		return []Port{}
	}
	ports := make([]Port, 0, len(entries))
	for _, e := range entries {
		ports = append(ports, e.toPort())
	}
	return ports
}

// LocalPorts enumerates serial devices visible on this host directly,
// bypassing the toolchain. Useful for opening a monitor session when the
// toolchain is not installed at all.
func LocalPorts() []Port {
	names, err := serial.GetPortsList()
	if err != nil {
		log.Printf("[registry] local port scan failed: %v", err)
		return []Port{}
	}
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		ports = append(ports, Port{Address: name, Label: name, Protocol: "serial"})
	}
	return ports
}

// ============================================================================
// Libraries
// ============================================================================

type librariesPayload struct {
	Libraries []struct {
		Name   string `json:"name"`
		Latest struct {
			Version  string `json:"version"`
			Sentence string `json:"sentence"`
		} `json:"latest"`
	} `json:"libraries"`
}

// SearchLibraries queries the library index for a keyword. Same fail-open
// policy as the board and port listings.
func (r *Registry) SearchLibraries(ctx context.Context, query string) []Library {
	out, ok := r.listing(ctx, "lib", "search", query, "--format", "json")
	if !ok {
		return []Library{}
	}
	var payload librariesPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		log.Printf("[registry] lib search: bad JSON: %v", err)
		return []Library{}
	}
	libs := make([]Library, 0, len(payload.Libraries))
	for _, e := range payload.Libraries {
		libs = append(libs, Library{Name: e.Name, Version: e.Latest.Version, Description: e.Latest.Sentence})
	}
	return libs
}

// InstallLibrary installs a library by name. Unlike the listings this is a
// mutation, so failures do surface as errors.
func (r *Registry) InstallLibrary(ctx context.Context, name string) error {
	res := r.runner.Run(ctx, "lib", "install", name)
	if !res.Ran() {
		return fmt.Errorf("registry: install %s: %w", name, res.SpawnErr)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return fmt.Errorf("registry: install %s: %s", name, detail)
	}
	log.Printf("[registry] installed library %s", name)
	return nil
}

// ============================================================================
// Snapshot
// ============================================================================

// Snapshot is a combined boards and ports view for host handshakes.
type Snapshot struct {
	Boards []Board `json:"boards"`
	Ports  []Port  `json:"ports"`
}

// Snapshot fetches boards and ports concurrently. Both listings are
// fail-open, so taking a snapshot always succeeds.
func (r *Registry) Snapshot(ctx context.Context) Snapshot {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Boards = r.Boards(gctx)
		return nil
	})
	g.Go(func() error {
		snap.Ports = r.Ports(gctx)
		return nil
	})
	_ = g.Wait()
	return snap
}
