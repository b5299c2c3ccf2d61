// Package transcript records serial monitor traffic to CSV files, one
// row per line with a timestamp and direction, rotating files once they
// reach a row cap.
package transcript

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder writes timestamped serial traffic to CSV files with automatic
// rotation.
type Recorder struct {
	mu       sync.Mutex
	dir      string
	maxLines int
	enabled  bool

	file    *os.File
	writer  *csv.Writer
	rows    int
	fileSeq int
}

// Config holds recorder configuration.
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path"`
	MaxLines int    `yaml:"max_lines" json:"maxLines"`
}

const defaultMaxLines = 100_000 // Rotate after 100k rows

var csvHeader = []string{"timestamp", "direction", "line"}

// Row directions.
const (
	DirReceived = "rx"
	DirSent     = "tx"
)

// New creates a new Recorder.
func New(cfg Config) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "transcripts"
	}
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	return &Recorder{
		dir:      cfg.Path,
		maxLines: maxLines,
		enabled:  cfg.Enabled,
	}
}

// SetEnabled toggles recording at runtime. Disabling closes the current
// file.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on && r.file != nil {
		r.closeFile()
	}
}

// IsEnabled reports whether recording is active.
func (r *Recorder) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Received records a line read from the device.
func (r *Recorder) Received(line string) {
	r.record(DirReceived, line)
}

// Sent records a payload written to the device.
func (r *Recorder) Sent(line string) {
	r.record(DirSent, line)
}

func (r *Recorder) record(direction, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}

	if r.writer == nil || r.rows >= r.maxLines {
		if err := r.rotateFile(time.Now()); err != nil {
			log.Printf("[transcript] rotate failed: %v", err)
			return
		}
	}

	row := []string{time.Now().Format(time.RFC3339Nano), direction, line}
	if err := r.writer.Write(row); err != nil {
		log.Printf("[transcript] write failed: %v", err)
		return
	}
	r.writer.Flush()
	r.rows++
}

// Close flushes and closes the current transcript file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	r.fileSeq++
	filename := fmt.Sprintf("monitor_%s_%02d.csv", now.Format("2006-01-02_150405"), r.fileSeq)
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	log.Printf("[transcript] opened %s", path)
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}
