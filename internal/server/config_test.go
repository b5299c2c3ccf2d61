package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Toolchain.Bin != "arduino-cli" {
		t.Errorf("Toolchain.Bin = %q", cfg.Toolchain.Bin)
	}
	if cfg.Toolchain.FQBN != "arduino:avr:uno" {
		t.Errorf("Toolchain.FQBN = %q", cfg.Toolchain.FQBN)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d", cfg.Serial.BaudRate)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Transcript.Enabled {
		t.Error("transcript recording enabled by default")
	}
}

func TestLoadConfigMissingFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg := LoadConfig(path)
	if cfg.Toolchain.Bin != "arduino-cli" {
		t.Errorf("Toolchain.Bin = %q, want default", cfg.Toolchain.Bin)
	}
	if cfg.path != path {
		t.Errorf("path = %q, want %q", cfg.path, path)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unoagent.yaml")
	yaml := `
toolchain:
  bin: /opt/arduino-cli/bin/arduino-cli
  fqbn: esp32:esp32:esp32
serial:
  port_path: /dev/ttyUSB7
  baud_rate: 921600
server:
  listen_addr: ":9090"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(path)
	if cfg.Toolchain.Bin != "/opt/arduino-cli/bin/arduino-cli" {
		t.Errorf("Toolchain.Bin = %q", cfg.Toolchain.Bin)
	}
	if cfg.Toolchain.FQBN != "esp32:esp32:esp32" {
		t.Errorf("Toolchain.FQBN = %q", cfg.Toolchain.FQBN)
	}
	if cfg.Serial.PortPath != "/dev/ttyUSB7" {
		t.Errorf("Serial.PortPath = %q", cfg.Serial.PortPath)
	}
	if cfg.Serial.BaudRate != 921600 {
		t.Errorf("Serial.BaudRate = %d", cfg.Serial.BaudRate)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("Server.ListenAddr = %q", cfg.Server.ListenAddr)
	}
	// Sections absent from the file keep their defaults
	if cfg.Transcript.Path != "transcripts" {
		t.Errorf("Transcript.Path = %q, want default", cfg.Transcript.Path)
	}
}

func TestLoadConfigMalformedYAMLFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("toolchain: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(path)
	if cfg.Toolchain.Bin != "arduino-cli" {
		t.Errorf("Toolchain.Bin = %q, want default after parse error", cfg.Toolchain.Bin)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLCHAIN_BIN", "arduino-cli-nightly")
	t.Setenv("SERIAL_PORT", "/dev/ttyACM3")
	t.Setenv("SERIAL_BAUD", "57600")
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("TRANSCRIPT_ENABLED", "true")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if cfg.Toolchain.Bin != "arduino-cli-nightly" {
		t.Errorf("Toolchain.Bin = %q", cfg.Toolchain.Bin)
	}
	if cfg.Serial.PortPath != "/dev/ttyACM3" {
		t.Errorf("Serial.PortPath = %q", cfg.Serial.PortPath)
	}
	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("Serial.BaudRate = %d", cfg.Serial.BaudRate)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("Server.ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if !cfg.Transcript.Enabled {
		t.Error("TRANSCRIPT_ENABLED not applied")
	}
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("SERIAL_BAUD", "fast")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d, want default kept", cfg.Serial.BaudRate)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := `
# comment
UNOAGENT_TEST_KEY = "from-file"

NOT_A_PAIR
`
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(env), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("UNOAGENT_TEST_KEY", "")
	loadEnvFile(path)
	if got := os.Getenv("UNOAGENT_TEST_KEY"); got != "from-file" {
		t.Errorf("UNOAGENT_TEST_KEY = %q, want from-file", got)
	}

	// The real environment wins over the file
	t.Setenv("UNOAGENT_TEST_KEY", "from-env")
	loadEnvFile(path)
	if got := os.Getenv("UNOAGENT_TEST_KEY"); got != "from-env" {
		t.Errorf("UNOAGENT_TEST_KEY = %q, want from-env", got)
	}
}

func TestUpdateFromJSONDeepMerge(t *testing.T) {
	cfg := DefaultConfig()

	patch := `{"serial": {"baudRate": 9600}}`
	if err := cfg.UpdateFromJSON([]byte(patch)); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}

	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("Serial.BaudRate = %d, want patched 9600", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Parity != "none" {
		t.Errorf("Serial.Parity = %q, want preserved", cfg.Serial.Parity)
	}
	if cfg.Toolchain.Bin != "arduino-cli" {
		t.Errorf("Toolchain.Bin = %q, want untouched", cfg.Toolchain.Bin)
	}
}

func TestUpdateFromJSONRejectsGarbage(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte("{nope")); err == nil {
		t.Fatal("UpdateFromJSON accepted malformed JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unoagent.yaml")
	cfg := LoadConfig(path)
	cfg.Serial.PortPath = "/dev/ttyS9"
	cfg.Toolchain.FQBN = "rp2040:rp2040:rpipico"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again := LoadConfig(path)
	if again.Serial.PortPath != "/dev/ttyS9" {
		t.Errorf("Serial.PortPath = %q after reload", again.Serial.PortPath)
	}
	if again.Toolchain.FQBN != "rp2040:rp2040:rpipico" {
		t.Errorf("Toolchain.FQBN = %q after reload", again.Toolchain.FQBN)
	}
}

func TestMonitorConfigMapping(t *testing.T) {
	sc := SerialConfig{PortPath: "/dev/ttyACM0", BaudRate: 250000, DataBits: 7, StopBits: 2, Parity: "even"}
	mc := sc.MonitorConfig()
	if mc.BaudRate != 250000 || mc.DataBits != 7 || mc.StopBits != 2 || mc.Parity != "even" {
		t.Errorf("MonitorConfig = %+v", mc)
	}
}
