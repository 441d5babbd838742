// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a message into a human-readable string
func FormatMessage(m *Message) string {
	timestamp := m.timestamp.Format("15:04:05.000")
	arrow := "->"
	if m.direction == Inbound {
		arrow = "<-"
	}

	result := fmt.Sprintf("[%s] %s %s", timestamp, arrow, FormatKind(m.kind))
	if details := FormatFields(m); details != "" {
		result += "  " + details
	}
	return result
}

// FormatKind returns the human-readable name for a message kind
func FormatKind(k Kind) string {
	switch k {
	case KindPing:
		return "PING"
	case KindSetZone:
		return "SET_ZONE"
	case KindSetDateTime:
		return "SET_DATE_TIME"
	case KindGetProgram:
		return "GET_PROGRAM"
	case KindGetConfig:
		return "GET_CONFIG"
	case KindGetInfo:
		return "GET_INFO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// String returns the kind name
func (k Kind) String() string {
	return FormatKind(k)
}

// FormatFields renders the interesting fields of a message
func FormatFields(m *Message) string {
	switch m.kind {
	case KindSetZone:
		channel, status, ok := m.Zone()
		if !ok {
			break
		}
		state := "OFF"
		if status == ZoneOn {
			state = "ON"
		} else if status != ZoneOff {
			state = fmt.Sprintf("status=%d", status)
		}
		return fmt.Sprintf("zone %d %s", channel, state)

	case KindSetDateTime:
		dt, ok := m.DateTime()
		if !ok {
			break
		}
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d %s",
			dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, weekdayName(dt.WeekDay))

	case KindGetProgram:
		if name, ok := m.ProgramName(); ok && len(m.attrs) == 1 {
			return fmt.Sprintf("program %q", name)
		}
	}
	return formatAttrs(m.attrs)
}

func formatAttrs(attrs []Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Name, a.Value))
	}
	return strings.Join(parts, " ")
}

func weekdayName(d int) string {
	if d < 0 || d > 6 {
		return fmt.Sprintf("weekday=%d", d)
	}
	return time.Weekday(d).String()
}
