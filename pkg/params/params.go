// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package params holds the immutable connection parameters shared by every
// transport backend, together with loaders for the supported configuration
// formats.
package params

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigurationError reports a rejected connection parameter
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("params: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("params: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Parameters is the connection configuration of one transport.
// The zero value is not useful; use Default or a Builder.
type Parameters struct {
	name     string
	target   string
	baudRate BaudRate
	dataBits DataBits
	stopBits StopBits
	parity   Parity
	flowIn   FlowControl
	flowOut  FlowControl
	echo     bool
	timeout  time.Duration
}

// Default returns parameters with the default serial settings (9600 8N1,
// no flow control, 2 s receive timeout) and an empty target
func Default(name string) Parameters {
	return Parameters{
		name:     name,
		baudRate: DefaultBaudRate,
		dataBits: DefaultDataBits,
		stopBits: DefaultStopBits,
		parity:   DefaultParity,
		flowIn:   FlowNone,
		flowOut:  FlowNone,
		timeout:  DefaultReceiveTimeout,
	}
}

// Name returns the logical connection name
func (p Parameters) Name() string { return p.name }

// Target returns the serial port name, host:port or bridge URL
func (p Parameters) Target() string { return p.target }

// BaudRate returns the line speed
func (p Parameters) BaudRate() BaudRate { return p.baudRate }

// DataBits returns the data bits per character
func (p Parameters) DataBits() DataBits { return p.dataBits }

// StopBits returns the stop bit setting
func (p Parameters) StopBits() StopBits { return p.stopBits }

// Parity returns the parity scheme
func (p Parameters) Parity() Parity { return p.parity }

// FlowControlIn returns the receive direction flow control
func (p Parameters) FlowControlIn() FlowControl { return p.flowIn }

// FlowControlOut returns the transmit direction flow control
func (p Parameters) FlowControlOut() FlowControl { return p.flowOut }

// FlowControl returns the combined flow control mask
func (p Parameters) FlowControl() FlowControl { return p.flowIn | p.flowOut }

// Echo returns the RS485 echo flag
func (p Parameters) Echo() bool { return p.echo }

// ReceiveTimeout returns the read timeout. Zero means block until data arrives.
func (p Parameters) ReceiveTimeout() time.Duration { return p.timeout }

// WithTarget returns a copy of p with a different target
func (p Parameters) WithTarget(target string) Parameters {
	p.target = target
	return p
}

// Builder returns a builder seeded with p
func (p Parameters) Builder() *Builder {
	return &Builder{p: p}
}

// String returns a compact description, e.g. "/dev/ttyUSB0 9600 8N1"
func (p Parameters) String() string {
	parity := strings.ToUpper(p.parity.String()[:1])
	return fmt.Sprintf("%s %d %s%s%s", p.target, p.baudRate, p.dataBits, parity, p.stopBits)
}

// Builder accumulates parameter changes. The first invalid value is kept and
// returned by Build.
type Builder struct {
	p   Parameters
	err error
}

// NewBuilder starts from Default(name)
func NewBuilder(name string) *Builder {
	return &Builder{p: Default(name)}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Name sets the logical name
func (b *Builder) Name(name string) *Builder {
	b.p.name = name
	return b
}

// Target sets the serial port name, host:port or bridge URL
func (b *Builder) Target(target string) *Builder {
	b.p.target = strings.TrimSpace(target)
	return b
}

// BaudRate sets the line speed
func (b *Builder) BaudRate(rate int) *Builder {
	br := BaudRate(rate)
	if !br.Valid() {
		return b.fail(&ConfigurationError{Field: "baud rate", Value: strconv.Itoa(rate), Reason: "unsupported rate"})
	}
	b.p.baudRate = br
	return b
}

// DataBits sets the data bits per character
func (b *Builder) DataBits(bits int) *Builder {
	d := DataBits(bits)
	if !d.Valid() {
		return b.fail(&ConfigurationError{Field: "data bits", Value: strconv.Itoa(bits), Reason: "must be 5, 6, 7 or 8"})
	}
	b.p.dataBits = d
	return b
}

// StopBits sets the stop bit code
func (b *Builder) StopBits(s StopBits) *Builder {
	if !s.Valid() {
		return b.fail(&ConfigurationError{Field: "stop bits", Value: strconv.Itoa(int(s)), Reason: "unknown code"})
	}
	b.p.stopBits = s
	return b
}

// Parity sets the parity scheme
func (b *Builder) Parity(p Parity) *Builder {
	if !p.Valid() {
		return b.fail(&ConfigurationError{Field: "parity", Value: strconv.Itoa(int(p)), Reason: "unknown code"})
	}
	b.p.parity = p
	return b
}

// FlowControlIn sets the receive direction flow control
func (b *Builder) FlowControlIn(f FlowControl) *Builder {
	if !f.ValidInput() {
		return b.fail(&ConfigurationError{Field: "input flow control", Value: f.String(), Reason: "not an input mode"})
	}
	b.p.flowIn = f
	return b
}

// FlowControlOut sets the transmit direction flow control
func (b *Builder) FlowControlOut(f FlowControl) *Builder {
	if !f.ValidOutput() {
		return b.fail(&ConfigurationError{Field: "output flow control", Value: f.String(), Reason: "not an output mode"})
	}
	b.p.flowOut = f
	return b
}

// Echo sets the RS485 echo flag
func (b *Builder) Echo(echo bool) *Builder {
	b.p.echo = echo
	return b
}

// ReceiveTimeout sets the read timeout; zero blocks until data arrives
func (b *Builder) ReceiveTimeout(d time.Duration) *Builder {
	if d < 0 {
		return b.fail(&ConfigurationError{Field: "receive timeout", Value: d.String(), Reason: "must not be negative"})
	}
	b.p.timeout = d
	return b
}

// Set applies a textual setting as found in configuration documents.
// Keys are case-insensitive: name, port, baudrate, databits, stopbits,
// parity, flowcontrolin, flowcontrolout, echo, timeout (milliseconds).
func (b *Builder) Set(key, value string) *Builder {
	value = strings.TrimSpace(value)
	switch strings.ToLower(key) {
	case "name":
		b.p.name = value
	case "port", "portname", "target":
		b.p.target = value
	case "baudrate":
		br, err := ParseBaudRate(value)
		if err != nil {
			return b.fail(err)
		}
		b.p.baudRate = br
	case "databits":
		b.p.dataBits = ParseDataBits(value)
	case "stopbits":
		s, err := ParseStopBits(value)
		if err != nil {
			return b.fail(err)
		}
		b.p.stopBits = s
	case "parity":
		p, err := ParseParity(value)
		if err != nil {
			return b.fail(err)
		}
		b.p.parity = p
	case "flowcontrolin":
		f, err := ParseFlowControl(value)
		if err != nil {
			return b.fail(err)
		}
		return b.FlowControlIn(f)
	case "flowcontrolout":
		f, err := ParseFlowControl(value)
		if err != nil {
			return b.fail(err)
		}
		return b.FlowControlOut(f)
	case "echo":
		b.p.echo = strings.EqualFold(value, "true")
	case "timeout", "receivetimeout":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return b.fail(&ConfigurationError{Field: "receive timeout", Value: value, Reason: "not a number"})
		}
		return b.ReceiveTimeout(time.Duration(ms) * time.Millisecond)
	default:
		return b.fail(&ConfigurationError{Field: "key", Value: key, Reason: "unknown setting"})
	}
	return b
}

// Err returns the first error recorded so far
func (b *Builder) Err() error {
	return b.err
}

// Build returns the parameters, or the first rejected value
func (b *Builder) Build() (Parameters, error) {
	if b.err != nil {
		return Parameters{}, b.err
	}
	return b.p, nil
}
