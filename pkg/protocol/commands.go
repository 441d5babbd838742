// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"strconv"
	"time"
)

// Command builders validate their fields and return outbound messages ready
// for Bytes.

// NewPing creates a Ping command. The controller echoes it back.
func NewPing() *Message {
	return newOutbound(KindPing, nil)
}

// NewSetZone switches one zone valve.
// Channel is 0-63, status is ZoneOff or ZoneOn.
func NewSetZone(channel, status int) (*Message, error) {
	attrs := []Attr{
		{FieldChannel, strconv.Itoa(channel)},
		{FieldStatus, strconv.Itoa(status)},
	}
	if err := checkRanges(KindSetZone, attrs); err != nil {
		return nil, err
	}
	return newOutbound(KindSetZone, attrs), nil
}

// NewSetDateTime sets the controller clock from the calendar fields of t as
// seen in t's location. No zone conversion is applied.
func NewSetDateTime(t time.Time) (*Message, error) {
	return NewSetDateTimeFields(DateTimeOf(t))
}

// NewSetDateTimeFields sets the controller clock from explicit fields
func NewSetDateTimeFields(dt DateTime) (*Message, error) {
	attrs := dt.attrs()
	if err := checkRanges(KindSetDateTime, attrs); err != nil {
		return nil, err
	}
	return newOutbound(KindSetDateTime, attrs), nil
}

// NewGetProgram requests the named irrigation program
func NewGetProgram(name string) (*Message, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalidField, FieldName)
	}
	return newOutbound(KindGetProgram, []Attr{{FieldName, name}}), nil
}

// NewGetConfig requests the controller configuration
func NewGetConfig() *Message {
	return newOutbound(KindGetConfig, nil)
}

// NewGetInfo requests controller identification
func NewGetInfo() *Message {
	return newOutbound(KindGetInfo, nil)
}

// checkRanges verifies the required integer attributes of kind
func checkRanges(kind Kind, attrs []Attr) error {
	for _, spec := range required[kind] {
		n, err := intAttr(attrs, spec.name)
		if err != nil {
			return err
		}
		if n < spec.min || n > spec.max {
			return fmt.Errorf("%w: %s=%d out of range %d-%d", ErrInvalidField, spec.name, n, spec.min, spec.max)
		}
	}
	return nil
}

func intAttr(attrs []Attr, name string) (int, error) {
	v, ok := findAttr(attrs, name)
	if !ok {
		return 0, fmt.Errorf("%w: %s missing", ErrInvalidField, name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidField, name, v)
	}
	return n, nil
}
