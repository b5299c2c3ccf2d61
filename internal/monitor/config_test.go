package monitor

import (
	"testing"

	"go.bug.st/serial"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaudRate: 115200}.withDefaults()
	if cfg.DataBits != 8 || cfg.StopBits != 1 || cfg.Parity != "none" {
		t.Fatalf("withDefaults = %+v, want 8 data bits, 1 stop bit, none parity", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaulted config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"classic 9600", Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"}, false},
		{"even parity", Config{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}, false},
		{"odd parity", Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "odd"}, false},
		{"mark parity", Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "mark"}, false},
		{"space parity", Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "space"}, false},
		{"zero baud", Config{BaudRate: 0, DataBits: 8, StopBits: 1, Parity: "none"}, true},
		{"negative baud", Config{BaudRate: -9600, DataBits: 8, StopBits: 1, Parity: "none"}, true},
		{"too few data bits", Config{BaudRate: 9600, DataBits: 4, StopBits: 1, Parity: "none"}, true},
		{"too many data bits", Config{BaudRate: 9600, DataBits: 9, StopBits: 1, Parity: "none"}, true},
		{"bad stop bits", Config{BaudRate: 9600, DataBits: 8, StopBits: 3, Parity: "none"}, true},
		{"unknown parity", Config{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "strong"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestConfigMode(t *testing.T) {
	cfg := Config{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "even"}
	mode := cfg.mode()
	if mode.BaudRate != 57600 || mode.DataBits != 7 {
		t.Fatalf("mode = %+v", mode)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("parity = %v, want EvenParity", mode.Parity)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("stop bits = %v, want TwoStopBits", mode.StopBits)
	}

	one := Config{BaudRate: 9600}.withDefaults().mode()
	if one.StopBits != serial.OneStopBit || one.Parity != serial.NoParity {
		t.Errorf("default mode = %+v, want one stop bit and no parity", one)
	}
}
