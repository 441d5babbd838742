// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestCommandEncoding(t *testing.T) {
	must := func(m *Message, err error) *Message {
		t.Helper()
		if err != nil {
			t.Fatalf("constructor error: %v", err)
		}
		return m
	}

	// 2024-03-05 was a Tuesday
	when := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name string
		msg  *Message
		kind Kind
		want string
	}{
		{"ping", NewPing(), KindPing, "<Ping />\r\n"},
		{"set zone", must(NewSetZone(2, 1)), KindSetZone, `<SetZone Channel="2" Status="1" />` + "\r\n"},
		{"set zone off", must(NewSetZone(63, 0)), KindSetZone, `<SetZone Channel="63" Status="0" />` + "\r\n"},
		{
			"set date time",
			must(NewSetDateTime(when)),
			KindSetDateTime,
			`<SetDateTime Day="5" WeekDay="3" Month="2" Year="2024" Hour="14" Minute="7" Second="9" />` + "\r\n",
		},
		{"get program", must(NewGetProgram("Morning")), KindGetProgram, `<GetProgram Name="Morning" />` + "\r\n"},
		{"get program escaped", must(NewGetProgram(`A&B "x"`)), KindGetProgram, `<GetProgram Name="A&amp;B &#34;x&#34;" />` + "\r\n"},
		{"get config", NewGetConfig(), KindGetConfig, "<GetConfig />\r\n"},
		{"get info", NewGetInfo(), KindGetInfo, "<GetInfo />\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.msg.Kind(), tt.kind)
			}
			if tt.msg.Direction() != Outbound || tt.msg.IsInbound() {
				t.Error("constructed message should be outbound")
			}
			if got := string(tt.msg.Bytes()); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
			if string(tt.msg.Raw()) != tt.want {
				t.Errorf("Raw() = %q, want encoded form", tt.msg.Raw())
			}
		})
	}
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Message, error)
	}{
		{"negative channel", func() (*Message, error) { return NewSetZone(-1, 0) }},
		{"channel too high", func() (*Message, error) { return NewSetZone(64, 1) }},
		{"status 2", func() (*Message, error) { return NewSetZone(1, 2) }},
		{"year before 2000", func() (*Message, error) {
			return NewSetDateTime(time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC))
		}},
		{"year after 2099", func() (*Message, error) {
			return NewSetDateTime(time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC))
		}},
		{"bad month field", func() (*Message, error) {
			return NewSetDateTimeFields(DateTime{Day: 1, Month: 13, Year: 2024})
		}},
		{"month zero", func() (*Message, error) {
			return NewSetDateTimeFields(DateTime{Day: 1, Month: 0, Year: 2024})
		}},
		{"bad weekday field", func() (*Message, error) {
			return NewSetDateTimeFields(DateTime{Day: 1, WeekDay: 7, Month: 1, Year: 2024})
		}},
		{"empty program", func() (*Message, error) { return NewGetProgram("") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.fn()
			if !errors.Is(err, ErrInvalidField) {
				t.Errorf("error = %v, want ErrInvalidField", err)
			}
			if m != nil {
				t.Error("message should be nil on error")
			}
		})
	}
}

func TestSetDateTime_WireEncoding(t *testing.T) {
	tests := []struct {
		name string
		when time.Time
		want string
	}{
		{
			"january sunday midnight",
			time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
			`<SetDateTime Day="1" WeekDay="1" Month="0" Year="2023" Hour="0" Minute="0" Second="0" />`,
		},
		{
			"december saturday evening",
			time.Date(2023, time.December, 30, 23, 59, 59, 0, time.UTC),
			`<SetDateTime Day="30" WeekDay="7" Month="11" Year="2023" Hour="23" Minute="59" Second="59" />`,
		},
		{
			"afternoon keeps 24 hour clock",
			time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC),
			`<SetDateTime Day="5" WeekDay="3" Month="2" Year="2024" Hour="14" Minute="7" Second="9" />`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewSetDateTime(tt.when)
			if err != nil {
				t.Fatal(err)
			}
			if got := m.String(); got != tt.want {
				t.Errorf("encoded = %s\nwant      %s", got, tt.want)
			}

			in, err := Decode([]byte(tt.want))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			dt, ok := in.DateTime()
			if !ok {
				t.Fatal("DateTime() not ok")
			}
			if dt != DateTimeOf(tt.when) {
				t.Errorf("DateTime() = %+v, want %+v", dt, DateTimeOf(tt.when))
			}
			if errs := ValidateMessage(in); len(errs) != 0 {
				t.Errorf("ValidateMessage() = %v", errs)
			}
		})
	}
}

func TestSetDateTime_UsesLocalCalendarFields(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 23:30 UTC on Saturday is 09:30 Sunday in UTC+10
	when := time.Date(2024, time.June, 1, 23, 30, 0, 0, time.UTC).In(loc)

	m, err := NewSetDateTime(when)
	if err != nil {
		t.Fatal(err)
	}
	dt, ok := m.DateTime()
	if !ok {
		t.Fatal("DateTime() not ok")
	}
	want := DateTime{Day: 2, WeekDay: 0, Month: 6, Year: 2024, Hour: 9, Minute: 30, Second: 0}
	if dt != want {
		t.Errorf("DateTime() = %+v, want %+v", dt, want)
	}
	if !dt.Time(loc).Equal(when) {
		t.Errorf("Time() = %v, want %v", dt.Time(loc), when)
	}
}

func TestAccessors_WrongKind(t *testing.T) {
	ping := NewPing()
	if _, _, ok := ping.Zone(); ok {
		t.Error("Zone() on Ping should not be ok")
	}
	if _, ok := ping.DateTime(); ok {
		t.Error("DateTime() on Ping should not be ok")
	}
	if _, ok := ping.ProgramName(); ok {
		t.Error("ProgramName() on Ping should not be ok")
	}
	if _, err := ping.Int(FieldChannel); !errors.Is(err, ErrInvalidField) {
		t.Errorf("Int() missing = %v, want ErrInvalidField", err)
	}
}

func TestKindTags(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := KindFromTag(k.Tag())
		if !ok || got != k {
			t.Errorf("KindFromTag(%q) = %v, %v", k.Tag(), got, ok)
		}
	}
	if _, ok := KindFromTag("ping"); ok {
		t.Error("tags should be case-sensitive")
	}
	if KindUnknown.Tag() != "" {
		t.Errorf("KindUnknown.Tag() = %q", KindUnknown.Tag())
	}
}
