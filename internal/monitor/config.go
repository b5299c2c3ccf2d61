package monitor

import (
	"fmt"

	"go.bug.st/serial"
)

// Config holds the serial wire parameters for one session. Zero fields
// are filled with the classic 8-N-1 defaults; BaudRate has no default and
// must be set.
type Config struct {
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	DataBits int    `yaml:"data_bits" json:"dataBits"`
	StopBits int    `yaml:"stop_bits" json:"stopBits"`
	Parity   string `yaml:"parity" json:"parity"`
}

// withDefaults fills unset fields with 8 data bits, 1 stop bit, no parity.
func (c Config) withDefaults() Config {
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Parity == "" {
		c.Parity = "none"
	}
	return c
}

var parities = map[string]serial.Parity{
	"none":  serial.NoParity,
	"even":  serial.EvenParity,
	"odd":   serial.OddParity,
	"mark":  serial.MarkParity,
	"space": serial.SpaceParity,
}

// Validate checks the parameter domains: positive baud rate, 5 to 8 data
// bits, 1 or 2 stop bits, and a known parity name.
func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("monitor: invalid baud rate %d", c.BaudRate)
	}
	switch c.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("monitor: invalid data bits %d", c.DataBits)
	}
	switch c.StopBits {
	case 1, 2:
	default:
		return fmt.Errorf("monitor: invalid stop bits %d", c.StopBits)
	}
	if _, ok := parities[c.Parity]; !ok {
		return fmt.Errorf("monitor: invalid parity %q", c.Parity)
	}
	return nil
}

// mode maps the config onto the serial driver's mode struct. Call only
// after Validate.
func (c Config) mode() *serial.Mode {
	stop := serial.OneStopBit
	if c.StopBits == 2 {
		stop = serial.TwoStopBits
	}
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parities[c.Parity],
		StopBits: stop,
	}
}
