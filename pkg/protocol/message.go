// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"errors"
	"strconv"
	"time"
)

// Errors
var (
	ErrInvalidField   = errors.New("invalid field")
	ErrInboundMessage = errors.New("inbound message cannot be sent")
)

// Attr is one name="value" attribute
type Attr struct {
	Name  string
	Value string
}

// Message is one protocol unit, either built for sending or decoded from a
// received frame
type Message struct {
	kind      Kind
	attrs     []Attr
	raw       []byte // encoded form (outbound) or source text (inbound)
	direction Direction
	timestamp time.Time
}

func newOutbound(kind Kind, attrs []Attr) *Message {
	return &Message{
		kind:      kind,
		attrs:     attrs,
		raw:       encode(kind.Tag(), attrs),
		direction: Outbound,
		timestamp: time.Now(),
	}
}

// Kind returns the message kind
func (m *Message) Kind() Kind {
	return m.kind
}

// Tag returns the wire tag
func (m *Message) Tag() string {
	return m.kind.Tag()
}

// Direction returns whether the message is outbound or inbound
func (m *Message) Direction() Direction {
	return m.direction
}

// IsInbound reports whether the message was decoded from a frame
func (m *Message) IsInbound() bool {
	return m.direction == Inbound
}

// Attrs returns a copy of the attributes in wire order
func (m *Message) Attrs() []Attr {
	out := make([]Attr, len(m.attrs))
	copy(out, m.attrs)
	return out
}

// Attr returns the value of the named attribute
func (m *Message) Attr(name string) (string, bool) {
	return findAttr(m.attrs, name)
}

func findAttr(attrs []Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Int returns the named attribute as an integer
func (m *Message) Int(name string) (int, error) {
	return intAttr(m.attrs, name)
}

// Raw returns the encoded bytes for outbound messages, or the received frame
// text for inbound ones
func (m *Message) Raw() []byte {
	return m.raw
}

// Bytes returns the wire encoding including the terminator.
// Inbound messages are re-encoded from their attributes.
func (m *Message) Bytes() []byte {
	if m.direction == Outbound {
		return m.raw
	}
	return encode(m.kind.Tag(), m.attrs)
}

// Timestamp returns when the message was built or decoded
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}

// Zone returns the channel and status of a SetZone message
func (m *Message) Zone() (channel, status int, ok bool) {
	if m.kind != KindSetZone {
		return 0, 0, false
	}
	channel, err1 := m.Int(FieldChannel)
	status, err2 := m.Int(FieldStatus)
	return channel, status, err1 == nil && err2 == nil
}

// DateTime returns the calendar fields of a SetDateTime message
func (m *Message) DateTime() (DateTime, bool) {
	if m.kind != KindSetDateTime {
		return DateTime{}, false
	}
	var dt DateTime
	fields := []struct {
		name string
		dst  *int
	}{
		{FieldDay, &dt.Day},
		{FieldWeekDay, &dt.WeekDay},
		{FieldMonth, &dt.Month},
		{FieldYear, &dt.Year},
		{FieldHour, &dt.Hour},
		{FieldMinute, &dt.Minute},
		{FieldSecond, &dt.Second},
	}
	for _, f := range fields {
		n, err := m.Int(f.name)
		if err != nil {
			return DateTime{}, false
		}
		*f.dst = n
	}
	dt.Month -= wireMonthOffset
	dt.WeekDay -= wireWeekDayOffset
	return dt, true
}

// ProgramName returns the program name of a GetProgram message
func (m *Message) ProgramName() (string, bool) {
	if m.kind != KindGetProgram {
		return "", false
	}
	return m.Attr(FieldName)
}

// String returns the wire form without the terminator
func (m *Message) String() string {
	b := m.Bytes()
	return string(b[:len(b)-len(Terminator)])
}

// DateTime holds the controller clock fields in Go calendar terms:
// WeekDay counts from Sunday = 0 like time.Weekday and Month is 1-12.
// The wire form shifts both (see wireMonthOffset).
type DateTime struct {
	Day     int
	WeekDay int
	Month   int
	Year    int
	Hour    int
	Minute  int
	Second  int
}

// DateTimeOf extracts the calendar fields of t in t's own location
func DateTimeOf(t time.Time) DateTime {
	return DateTime{
		Day:     t.Day(),
		WeekDay: int(t.Weekday()),
		Month:   int(t.Month()),
		Year:    t.Year(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
	}
}

// Time returns the instant in loc. WeekDay is ignored.
func (d DateTime) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

func (d DateTime) attrs() []Attr {
	return []Attr{
		{FieldDay, strconv.Itoa(d.Day)},
		{FieldWeekDay, strconv.Itoa(d.WeekDay + wireWeekDayOffset)},
		{FieldMonth, strconv.Itoa(d.Month + wireMonthOffset)},
		{FieldYear, strconv.Itoa(d.Year)},
		{FieldHour, strconv.Itoa(d.Hour)},
		{FieldMinute, strconv.Itoa(d.Minute)},
		{FieldSecond, strconv.Itoa(d.Second)},
	}
}
