// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"strconv"
	"strings"
	"time"
)

// BaudRate is a serial line speed in bits per second
type BaudRate int

// Supported baud rates
const (
	Baud110    BaudRate = 110
	Baud300    BaudRate = 300
	Baud600    BaudRate = 600
	Baud1200   BaudRate = 1200
	Baud2400   BaudRate = 2400
	Baud4800   BaudRate = 4800
	Baud9600   BaudRate = 9600
	Baud14400  BaudRate = 14400
	Baud19200  BaudRate = 19200
	Baud38400  BaudRate = 38400
	Baud57600  BaudRate = 57600
	Baud115200 BaudRate = 115200
	Baud128000 BaudRate = 128000
	Baud256000 BaudRate = 256000
)

var baudRates = []BaudRate{
	Baud110, Baud300, Baud600, Baud1200, Baud2400, Baud4800, Baud9600,
	Baud14400, Baud19200, Baud38400, Baud57600, Baud115200, Baud128000, Baud256000,
}

// BaudRates returns all supported baud rates in ascending order
func BaudRates() []BaudRate {
	out := make([]BaudRate, len(baudRates))
	copy(out, baudRates)
	return out
}

// Valid reports whether b is a supported baud rate
func (b BaudRate) Valid() bool {
	for _, r := range baudRates {
		if r == b {
			return true
		}
	}
	return false
}

func (b BaudRate) String() string {
	return strconv.Itoa(int(b))
}

// ParseBaudRate parses a decimal baud rate and checks it is supported
func ParseBaudRate(s string) (BaudRate, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ConfigurationError{Field: "baud rate", Value: s, Reason: "not a number"}
	}
	b := BaudRate(n)
	if !b.Valid() {
		return 0, &ConfigurationError{Field: "baud rate", Value: s, Reason: "unsupported rate"}
	}
	return b, nil
}

// DataBits is the number of data bits per character
type DataBits int

// Data bit settings
const (
	DataBits5 DataBits = 5
	DataBits6 DataBits = 6
	DataBits7 DataBits = 7
	DataBits8 DataBits = 8
)

// Valid reports whether d is 5, 6, 7 or 8
func (d DataBits) Valid() bool {
	return d >= DataBits5 && d <= DataBits8
}

func (d DataBits) String() string {
	if !d.Valid() {
		return "8"
	}
	return strconv.Itoa(int(d))
}

// ParseDataBits converts the textual form to DataBits.
// Anything other than "5", "6", "7" or "8" yields 8 data bits; existing
// configuration files depend on this.
func ParseDataBits(s string) DataBits {
	switch strings.TrimSpace(s) {
	case "5":
		return DataBits5
	case "6":
		return DataBits6
	case "7":
		return DataBits7
	default:
		return DataBits8
	}
}

// StopBits selects the number of stop bits.
// The numeric values are the legacy configuration codes.
type StopBits int

// Stop bit settings
const (
	StopBits1   StopBits = 1
	StopBits2   StopBits = 2
	StopBits1_5 StopBits = 3
)

// Valid reports whether s is a known stop bit code
func (s StopBits) Valid() bool {
	return s == StopBits1 || s == StopBits2 || s == StopBits1_5
}

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits1_5:
		return "1.5"
	case StopBits2:
		return "2"
	default:
		return "unknown"
	}
}

// ParseStopBits parses "1", "1.5" or "2"
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return StopBits1, nil
	case "1.5":
		return StopBits1_5, nil
	case "2":
		return StopBits2, nil
	default:
		return 0, &ConfigurationError{Field: "stop bits", Value: s, Reason: "must be 1, 1.5 or 2"}
	}
}

// Parity selects the parity scheme
type Parity int

// Parity settings
const (
	ParityNone  Parity = 0
	ParityOdd   Parity = 1
	ParityEven  Parity = 2
	ParityMark  Parity = 3
	ParitySpace Parity = 4
)

// Valid reports whether p is a known parity code
func (p Parity) Valid() bool {
	return p >= ParityNone && p <= ParitySpace
}

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return "unknown"
	}
}

// ParseParity parses a case-insensitive parity name
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ParityNone, nil
	case "odd":
		return ParityOdd, nil
	case "even":
		return ParityEven, nil
	case "mark":
		return ParityMark, nil
	case "space":
		return ParitySpace, nil
	default:
		return 0, &ConfigurationError{Field: "parity", Value: s, Reason: "must be none, odd, even, mark or space"}
	}
}

// FlowControl is a flow control bitmask.
// Input and output directions are configured independently.
type FlowControl int

// Flow control bits
const (
	FlowNone       FlowControl = 0
	FlowRTSCTSIn   FlowControl = 1
	FlowRTSCTSOut  FlowControl = 2
	FlowXonXoffIn  FlowControl = 4
	FlowXonXoffOut FlowControl = 8
)

// ValidInput reports whether f is usable as input flow control
func (f FlowControl) ValidInput() bool {
	return f == FlowNone || f == FlowRTSCTSIn || f == FlowXonXoffIn
}

// ValidOutput reports whether f is usable as output flow control
func (f FlowControl) ValidOutput() bool {
	return f == FlowNone || f == FlowRTSCTSOut || f == FlowXonXoffOut
}

func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowRTSCTSIn:
		return "rts/cts in"
	case FlowRTSCTSOut:
		return "rts/cts out"
	case FlowXonXoffIn:
		return "xon/xoff in"
	case FlowXonXoffOut:
		return "xon/xoff out"
	default:
		return "unknown"
	}
}

// ParseFlowControl parses a case-insensitive flow control name
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return FlowNone, nil
	case "rts/cts in":
		return FlowRTSCTSIn, nil
	case "rts/cts out":
		return FlowRTSCTSOut, nil
	case "xon/xoff in":
		return FlowXonXoffIn, nil
	case "xon/xoff out":
		return FlowXonXoffOut, nil
	default:
		return 0, &ConfigurationError{Field: "flow control", Value: s, Reason: "unknown mode"}
	}
}

// Defaults
const (
	DefaultBaudRate       = Baud9600
	DefaultDataBits       = DataBits8
	DefaultStopBits       = StopBits1
	DefaultParity         = ParityNone
	DefaultReceiveTimeout = 2000 * time.Millisecond

	// DefaultPropertiesTimeout applies when a properties map has no timeout key
	DefaultPropertiesTimeout = 500 * time.Millisecond
)
