// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/radicalsystems/mistctl/pkg/params"
	"go.bug.st/serial"
)

// portHandle is the subset of serial.Port the driver uses
type portHandle interface {
	SetReadTimeout(t time.Duration) error
	SetRTS(rts bool) error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// allow tests to replace the OS serial layer
var (
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		return serial.Open(name, mode)
	}
	listPorts = serial.GetPortsList
)

// Ports lists the serial ports present on the system
func Ports() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Serial is a Driver over a local serial port
type Serial struct {
	base
	port portHandle

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// NewSerial creates a closed serial driver
func NewSerial(p params.Parameters, opts ...Option) *Serial {
	s := &Serial{}
	s.init(p, opts)
	return s
}

// serialMode maps parameters onto the serial library's mode.
// Flow control cannot be configured through go.bug.st/serial, so anything
// other than none is rejected.
func serialMode(p params.Parameters) (*serial.Mode, error) {
	if p.FlowControl() != params.FlowNone {
		return nil, &params.ConfigurationError{
			Field:  "flow control",
			Value:  fmt.Sprintf("%s/%s", p.FlowControlIn(), p.FlowControlOut()),
			Reason: "not supported by the serial backend",
		}
	}

	mode := &serial.Mode{
		BaudRate: int(p.BaudRate()),
		DataBits: int(p.DataBits()),
	}

	switch p.Parity() {
	case params.ParityNone:
		mode.Parity = serial.NoParity
	case params.ParityOdd:
		mode.Parity = serial.OddParity
	case params.ParityEven:
		mode.Parity = serial.EvenParity
	case params.ParityMark:
		mode.Parity = serial.MarkParity
	case params.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, &params.ConfigurationError{Field: "parity", Value: p.Parity().String(), Reason: "unknown code"}
	}

	switch p.StopBits() {
	case params.StopBits1:
		mode.StopBits = serial.OneStopBit
	case params.StopBits1_5:
		mode.StopBits = serial.OnePointFiveStopBits
	case params.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, &params.ConfigurationError{Field: "stop bits", Value: p.StopBits().String(), Reason: "unknown code"}
	}

	return mode, nil
}

// Open opens and configures the port. On failure nothing stays open.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open.Load() {
		return ErrAlreadyOpen
	}
	target := s.params.Target()
	if target == "" {
		return &ConnectionError{Op: "open", Target: target, Err: &params.ConfigurationError{Field: "port", Reason: "no serial port given"}}
	}

	mode, err := serialMode(s.params)
	if err != nil {
		return &ConnectionError{Op: "open", Target: target, Err: err}
	}

	port, err := openPort(target, mode)
	if err != nil {
		return &ConnectionError{Op: "open", Target: target, Err: err}
	}

	timeout := s.params.ReceiveTimeout()
	if timeout == 0 {
		timeout = serial.NoTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return &ConnectionError{Op: "open", Target: target, Err: fmt.Errorf("failed to set read timeout: %w", err)}
	}

	s.port = port
	s.open.Store(true)
	s.opts.log.Debug().Str("port", target).Int("baud", mode.BaudRate).Msg("serial port opened")
	return nil
}

// Close stops the modem poller and closes the port. Closing a closed driver
// is a no-op.
func (s *Serial) Close() error {
	s.DisableEvents()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open.Load() {
		return nil
	}
	s.open.Store(false)
	port := s.port
	s.port = nil

	if err := port.Close(); err != nil {
		return &ConnectionError{Op: "close", Target: s.params.Target(), Err: err}
	}
	s.opts.log.Debug().Str("port", s.params.Target()).Msg("serial port closed")
	return nil
}

func (s *Serial) handle() portHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Flush discards buffered input and output
func (s *Serial) Flush() error {
	port := s.handle()
	if port == nil {
		return &ConnectionError{Op: "flush", Target: s.target(), Err: ErrNotOpen}
	}
	if err := port.ResetInputBuffer(); err != nil {
		return &ConnectionError{Op: "flush", Target: s.target(), Err: err}
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return &ConnectionError{Op: "flush", Target: s.target(), Err: err}
	}
	return nil
}

// Write sends all of p
func (s *Serial) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	port := s.handle()
	if port == nil {
		return 0, &ConnectionError{Op: "write", Target: s.target(), Err: ErrNotOpen}
	}

	written := 0
	for written < len(p) {
		n, err := port.Write(p[written:])
		written += n
		if err != nil {
			return written, &ConnectionError{Op: "write", Target: s.target(), Err: err}
		}
		if n == 0 {
			return written, &ConnectionError{Op: "write", Target: s.target(), Err: fmt.Errorf("short write")}
		}
	}
	return written, nil
}

// Read reads whatever is available, waiting at most the receive timeout
func (s *Serial) Read(p []byte) (int, error) {
	port := s.handle()
	if port == nil {
		return 0, &ConnectionError{Op: "read", Target: s.target(), Err: ErrNotOpen}
	}

	n, err := port.Read(p)
	if err != nil {
		if !s.open.Load() {
			return 0, &ConnectionError{Op: "read", Target: s.target(), Err: ErrNotOpen}
		}
		return n, &ConnectionError{Op: "read", Target: s.target(), Err: err}
	}
	if n == 0 && s.Parameters().ReceiveTimeout() > 0 {
		return TimedOut, nil
	}
	return n, nil
}

// IoControl supports IoSetRTS
func (s *Serial) IoControl(code, arg int) (int, error) {
	switch code {
	case IoSetRTS:
		port := s.handle()
		if port == nil {
			return -1, &ConnectionError{Op: "ioctl", Target: s.target(), Err: ErrNotOpen}
		}
		if err := port.SetRTS(arg > 0); err != nil {
			return -1, &ConnectionError{Op: "ioctl", Target: s.target(), Err: err}
		}
		return 0, nil
	default:
		return -1, nil
	}
}

// EnableEvents starts sampling CTS and DSR. Listeners are notified on every
// change, from the poller goroutine.
func (s *Serial) EnableEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open.Load() {
		return &ConnectionError{Op: "events", Target: s.params.Target(), Err: ErrNotOpen}
	}
	if s.pollCancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})
	go s.pollModem(ctx, s.port, s.pollDone)
	return nil
}

// DisableEvents stops the modem poller and waits for it to exit
func (s *Serial) DisableEvents() {
	s.mu.Lock()
	cancel, done := s.pollCancel, s.pollDone
	s.pollCancel, s.pollDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Serial) pollModem(ctx context.Context, port portHandle, done chan struct{}) {
	defer close(done)

	last, err := port.GetModemStatusBits()
	if err != nil {
		s.opts.log.Debug().Err(err).Msg("modem status unavailable, events disabled")
		return
	}
	cts, dsr := last.CTS, last.DSR

	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		bits, err := port.GetModemStatusBits()
		if err != nil {
			s.opts.log.Debug().Err(err).Msg("modem status read failed")
			continue
		}
		if bits.CTS != cts {
			cts = bits.CTS
			s.notify(Notification{Event: EventCTS, Value: cts})
		}
		if bits.DSR != dsr {
			dsr = bits.DSR
			s.notify(Notification{Event: EventDSR, Value: dsr})
		}
	}
}
