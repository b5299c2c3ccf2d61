// Package monitor maintains the serial connection to a development board:
// opening and closing the port, framing the byte stream into lines,
// telling plotter traffic from plain log output, and pulsing the DTR line
// to reset the board. A Session owns at most one connection at a time and
// reports everything that happens through per event callbacks.
package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// connectTimeout bounds how long an open may take before the attempt
	// is abandoned.
	connectTimeout = 5 * time.Second

	// readPoll is the port read timeout. A timed out read returns n=0
	// with no error, which keeps the reader responsive to stop signals.
	readPoll = 100 * time.Millisecond

	// resetPulseStep is the pause after each DTR transition of the reset
	// pulse train.
	resetPulseStep = 100 * time.Millisecond

	readBufSize = 1024
)

var (
	// ErrNotConnected rejects writes and resets when no port is open.
	ErrNotConnected = errors.New("monitor: not connected")

	// ErrConnectTimeout means the port did not open within connectTimeout.
	ErrConnectTimeout = errors.New("monitor: connect timed out")

	// ErrConnectBusy rejects a connect while another one is still opening.
	ErrConnectBusy = errors.New("monitor: connect already in progress")

	// ErrConnectAborted means the session was torn down while the port
	// was opening.
	ErrConnectAborted = errors.New("monitor: connect aborted")
)

// State is the connection lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Port is the slice of the serial driver a session drives. Production
// sessions get a go.bug.st/serial port; tests script their own.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	Close() error
}

// Opener opens a configured port at an address.
type Opener func(address string, cfg Config) (Port, error)

// openSerial is the production opener.
func openSerial(address string, cfg Config) (Port, error) {
	port, err := serial.Open(address, cfg.mode())
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Printf("[monitor] reset input buffer on %s: %v", address, err)
	}
	return port, nil
}

// Session is a serial monitor connection. All operations are safe for
// concurrent use; connect, disconnect, write and reset serialize against
// each other, and lines are delivered in the order they arrive.
type Session struct {
	opener  Opener
	timeout time.Duration

	mu    sync.Mutex
	state State
	port  Port
	addr  string
	cfg   Config
	gen   int
	stop  chan struct{}
	done  chan struct{}

	onConnected    func(address string)
	onDisconnected func(address string)
	onData         func(line string)
	onRawData      func(chunk []byte)
	onPlotData     func(values []float64, line string)
	onError        func(err error)
	onSent         func(data string)
}

// NewSession returns a disconnected session backed by the real serial
// driver.
func NewSession() *Session {
	return NewSessionWith(openSerial)
}

// NewSessionWith returns a session that opens ports through the given
// opener.
func NewSessionWith(opener Opener) *Session {
	return &Session{opener: opener, timeout: connectTimeout}
}

// ============================================================
// Callbacks
// ============================================================

// Each event category holds at most one listener; registering again
// replaces the previous one, and nil clears it.

// OnConnected registers the listener for a completed connect.
func (s *Session) OnConnected(fn func(address string)) {
	s.mu.Lock()
	s.onConnected = fn
	s.mu.Unlock()
}

// OnDisconnected registers the listener for a closed connection.
func (s *Session) OnDisconnected(fn func(address string)) {
	s.mu.Lock()
	s.onDisconnected = fn
	s.mu.Unlock()
}

// OnData registers the listener for complete trimmed lines.
func (s *Session) OnData(fn func(line string)) {
	s.mu.Lock()
	s.onData = fn
	s.mu.Unlock()
}

// OnRawData registers the listener for raw byte chunks as they arrive,
// before any line framing.
func (s *Session) OnRawData(fn func(chunk []byte)) {
	s.mu.Lock()
	s.onRawData = fn
	s.mu.Unlock()
}

// OnPlotData registers the listener for lines classified as plotter
// traffic, with their parsed values.
func (s *Session) OnPlotData(fn func(values []float64, line string)) {
	s.mu.Lock()
	s.onPlotData = fn
	s.mu.Unlock()
}

// OnError registers the listener for connection failures.
func (s *Session) OnError(fn func(err error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// OnSent registers the listener for payloads written to the device.
func (s *Session) OnSent(fn func(data string)) {
	s.mu.Lock()
	s.onSent = fn
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address returns the connected port address, or "" when not connected.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Config returns the wire parameters of the current connection, zero when
// not connected.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ============================================================
// Connect / Disconnect
// ============================================================

// Connect opens address with the given config and starts the line reader.
// Connecting while already connected tears the old connection down first.
// The open races a timer; on timeout the attempt reports ErrConnectTimeout
// and a port that opens late is closed as soon as it shows up.
func (s *Session) Connect(address string, cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateConnecting {
		s.mu.Unlock()
		return ErrConnectBusy
	}
	oldPort, oldStop, oldDone, oldAddr, wasLive := s.detachLocked()
	s.state = StateConnecting
	s.gen++
	gen := s.gen
	opener := s.opener
	onDisc := s.onDisconnected
	s.mu.Unlock()

	if wasLive {
		if err := closePort(oldPort, oldStop, oldDone); err != nil {
			log.Printf("[monitor] close %s: %v", oldAddr, err)
		}
		if onDisc != nil {
			onDisc(oldAddr)
		}
	}

	type openResult struct {
		port Port
		err  error
	}
	ch := make(chan openResult, 1)
	go func() {
		port, err := opener(address, cfg)
		ch <- openResult{port, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			s.failConnect(gen)
			return fmt.Errorf("monitor: open %s: %w", address, res.err)
		}
		s.mu.Lock()
		if s.gen != gen || s.state != StateConnecting {
			s.mu.Unlock()
			res.port.Close()
			return ErrConnectAborted
		}
		s.port = res.port
		s.addr = address
		s.cfg = cfg
		s.state = StateConnected
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.readLoop(res.port, gen, s.stop, s.done)
		onConn := s.onConnected
		s.mu.Unlock()

		log.Printf("[monitor] connected to %s at %d baud", address, cfg.BaudRate)
		if onConn != nil {
			onConn(address)
		}
		return nil

	case <-timer.C:
		// The open call is still in flight. Hand the orphan to a goroutine
		// that closes the port if it ever shows up.
		go func() {
			if res := <-ch; res.err == nil && res.port != nil {
				res.port.Close()
			}
		}()
		s.failConnect(gen)
		log.Printf("[monitor] connect to %s timed out after %v", address, s.timeout)
		return ErrConnectTimeout
	}
}

// failConnect returns the state machine to Disconnected after a failed
// open, unless another operation already moved it on.
func (s *Session) failConnect(gen int) {
	s.mu.Lock()
	if s.gen == gen && s.state == StateConnecting {
		s.state = StateDisconnected
	}
	s.mu.Unlock()
}

// Disconnect closes the connection and returns once the port close has
// completed. State is reset unconditionally, close error or not, so a
// second call is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	port, stop, done, addr, live := s.detachLocked()
	onDisc := s.onDisconnected
	s.mu.Unlock()

	if !live {
		return nil
	}

	err := closePort(port, stop, done)
	log.Printf("[monitor] disconnected from %s", addr)
	if onDisc != nil {
		onDisc(addr)
	}
	if err != nil {
		return fmt.Errorf("monitor: close %s: %w", addr, err)
	}
	return nil
}

// detachLocked strips the live connection out of the session and marks it
// Disconnected. Callers finish the teardown with closePort outside the
// lock. Lock must be held.
func (s *Session) detachLocked() (port Port, stop, done chan struct{}, addr string, live bool) {
	port, stop, done, addr = s.port, s.stop, s.done, s.addr
	live = port != nil
	s.port = nil
	s.stop = nil
	s.done = nil
	s.addr = ""
	s.cfg = Config{}
	s.state = StateDisconnected
	if live {
		s.gen++
	}
	return port, stop, done, addr, live
}

// closePort stops the reader, closes the port, then waits for the reader
// to drain out.
func closePort(port Port, stop, done chan struct{}) error {
	if stop != nil {
		close(stop)
	}
	err := port.Close()
	if done != nil {
		<-done
	}
	return err
}

// ============================================================
// Writing and reset
// ============================================================

// Write sends text to the device with a newline terminator appended.
// Only valid while connected; a port I/O failure surfaces as an error but
// leaves the connection open.
func (s *Session) Write(text string) error {
	return s.send([]byte(text+"\n"), text)
}

// WriteRaw sends the bytes exactly as given, with no terminator. For
// protocols that are not newline framed.
func (s *Session) WriteRaw(data []byte) error {
	return s.send(data, string(data))
}

func (s *Session) send(data []byte, echo string) error {
	s.mu.Lock()
	if s.state != StateConnected || s.port == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if _, err := s.port.Write(data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor: write: %w", err)
	}
	onSent := s.onSent
	s.mu.Unlock()

	if onSent != nil {
		onSent(echo)
	}
	return nil
}

// ResetDevice pulses DTR low, high, low with a pause after each
// transition, the auto reset sequence boards wire to the control line.
// The session lock is held for the whole pulse train so no write, reset
// or disconnect can interleave with it.
func (s *Session) ResetDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.port == nil {
		return ErrNotConnected
	}

	log.Printf("[monitor] resetting device on %s", s.addr)
	for _, level := range []bool{false, true, false} {
		if err := s.port.SetDTR(level); err != nil {
			return fmt.Errorf("monitor: reset: set DTR: %w", err)
		}
		time.Sleep(resetPulseStep)
	}
	return nil
}

// SetDTR drives the DTR control line. The other line is left alone; some
// bootloaders are entered by toggling DTR and RTS in a specific order.
// Connected only.
func (s *Session) SetDTR(level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.port == nil {
		return ErrNotConnected
	}
	if err := s.port.SetDTR(level); err != nil {
		return fmt.Errorf("monitor: set DTR: %w", err)
	}
	return nil
}

// SetRTS drives the RTS control line. Connected only.
func (s *Session) SetRTS(level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.port == nil {
		return ErrNotConnected
	}
	if err := s.port.SetRTS(level); err != nil {
		return fmt.Errorf("monitor: set RTS: %w", err)
	}
	return nil
}

// ============================================================
// Reader
// ============================================================

// readLoop turns the byte stream into raw, line and plot events. It exits
// when stop closes or the port errors out.
func (s *Session) readLoop(port Port, gen int, stop, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readBufSize)
	var partial []byte

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.emitRaw(chunk)
			partial = append(partial, chunk...)
			for {
				idx := bytes.IndexByte(partial, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimSpace(string(partial[:idx]))
				partial = partial[idx+1:]
				if line == "" {
					continue
				}
				s.emitLine(line)
			}
		}
		if err != nil {
			select {
			case <-stop:
				// A deliberate close, not a device failure.
				return
			default:
			}
			s.readerFailed(gen, err)
			return
		}
	}
}

func (s *Session) emitRaw(chunk []byte) {
	s.mu.Lock()
	fn := s.onRawData
	s.mu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

func (s *Session) emitLine(line string) {
	s.mu.Lock()
	onData := s.onData
	onPlot := s.onPlotData
	s.mu.Unlock()

	if onData != nil {
		onData(line)
	}
	if onPlot != nil {
		if values, ok := Classify(line); ok {
			onPlot(values, line)
		}
	}
}

// readerFailed moves a failed connection to StateError, reports the
// error, then finishes the teardown itself. A reader whose connection was
// already replaced does nothing.
func (s *Session) readerFailed(gen int, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	addr := s.addr
	onErr := s.onError
	s.mu.Unlock()

	log.Printf("[monitor] read error on %s: %v", addr, err)
	if onErr != nil {
		onErr(fmt.Errorf("monitor: read: %w", err))
	}

	s.mu.Lock()
	if s.gen != gen {
		// A disconnect raced the error report; it owns the close.
		s.mu.Unlock()
		return
	}
	port, _, _, _, _ := s.detachLocked()
	onDisc := s.onDisconnected
	s.mu.Unlock()

	// The reader cannot wait on its own done channel, so it closes the
	// port directly instead of going through closePort.
	if port != nil {
		port.Close()
	}
	if onDisc != nil {
		onDisc(addr)
	}
}
