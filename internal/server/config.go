package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/monitor"
	"github.com/dayanandXdarpan/darpan-uno-sub002/internal/transcript"
)

// Config holds all agent configuration.
type Config struct {
	mu sync.RWMutex

	// Toolchain invocation
	Toolchain ToolchainConfig `yaml:"toolchain" json:"toolchain"`

	// Serial monitor defaults
	Serial SerialConfig `yaml:"serial" json:"serial"`

	// Traffic recording
	Transcript transcript.Config `yaml:"transcript" json:"transcript"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type ToolchainConfig struct {
	Bin       string   `yaml:"bin" json:"bin"`               // e.g. arduino-cli
	ExtraArgs []string `yaml:"extra_args" json:"extraArgs"`  // prepended to every invocation
	FQBN      string   `yaml:"fqbn" json:"fqbn"`             // default board, e.g. arduino:avr:uno
	Dir       string   `yaml:"dir" json:"dir"`               // working directory, inherited when empty
}

type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyACM0
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	DataBits int    `yaml:"data_bits" json:"dataBits"`
	StopBits int    `yaml:"stop_bits" json:"stopBits"`
	Parity   string `yaml:"parity" json:"parity"` // none, even, odd, mark, space
}

// MonitorConfig maps the serial defaults onto the monitor's wire config.
func (c SerialConfig) MonitorConfig() monitor.Config {
	return monitor.Config{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
	}
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Toolchain: ToolchainConfig{
			Bin:  "arduino-cli",
			FQBN: "arduino:avr:uno",
		},
		Serial: SerialConfig{
			PortPath: "",
			BaudRate: 115200,
			DataBits: 8,
			StopBits: 1,
			Parity:   "none",
		},
		Transcript: transcript.Config{
			Enabled: false,
			Path:    "transcripts",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the YAML is
// missing or malformed.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env from the config's directory, then from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Strip surrounding quotes
		val = strings.Trim(val, `"'`)
		// Real env takes precedence over .env entries
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: TOOLCHAIN_BIN, DEFAULT_FQBN, SERIAL_PORT,
// SERIAL_BAUD, SERIAL_PARITY, LISTEN_ADDR, TRANSCRIPT_ENABLED,
// TRANSCRIPT_PATH
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TOOLCHAIN_BIN"); v != "" {
		c.Toolchain.Bin = v
	}
	if v := os.Getenv("DEFAULT_FQBN"); v != "" {
		c.Toolchain.FQBN = v
	}
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.PortPath = v
	}
	if v := os.Getenv("SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("SERIAL_PARITY"); v != "" {
		c.Serial.Parity = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("TRANSCRIPT_ENABLED"); v != "" {
		c.Transcript.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("TRANSCRIPT_PATH"); v != "" {
		c.Transcript.Path = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "unoagent.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port path, baud rate, extra args).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
