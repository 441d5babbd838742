// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocol implements the SM100 tag protocol.
//
// Every message is a single self-closing XML-style element followed by a
// CR LF frame terminator:
//
//	<SetZone Channel="2" Status="1" />\r\n
//
// The tag names the command. The controller answers with an element of the
// same name, so the tag set is both the command and the response vocabulary.
package protocol

// Terminator ends every frame on the wire
const Terminator = "\r\n"

// Kind identifies a command or response
type Kind int

// Message kinds
const (
	KindUnknown Kind = iota
	KindPing
	KindSetZone
	KindSetDateTime
	KindGetProgram
	KindGetConfig
	KindGetInfo
)

// Wire tags
const (
	TagPing        = "Ping"
	TagSetZone     = "SetZone"
	TagSetDateTime = "SetDateTime"
	TagGetProgram  = "GetProgram"
	TagGetConfig   = "GetConfig"
	TagGetInfo     = "GetInfo"
)

// Attribute names
const (
	FieldChannel = "Channel"
	FieldStatus  = "Status"
	FieldDay     = "Day"
	FieldWeekDay = "WeekDay"
	FieldMonth   = "Month"
	FieldYear    = "Year"
	FieldHour    = "Hour"
	FieldMinute  = "Minute"
	FieldSecond  = "Second"
	FieldName    = "Name"
)

// Field limits
const (
	MaxChannel = 63
	ZoneOff    = 0
	ZoneOn     = 1
	MinYear    = 2000
	MaxYear    = 2099
)

var kindTags = map[Kind]string{
	KindPing:        TagPing,
	KindSetZone:     TagSetZone,
	KindSetDateTime: TagSetDateTime,
	KindGetProgram:  TagGetProgram,
	KindGetConfig:   TagGetConfig,
	KindGetInfo:     TagGetInfo,
}

var tagKinds = map[string]Kind{
	TagPing:        KindPing,
	TagSetZone:     KindSetZone,
	TagSetDateTime: KindSetDateTime,
	TagGetProgram:  KindGetProgram,
	TagGetConfig:   KindGetConfig,
	TagGetInfo:     KindGetInfo,
}

// Tag returns the wire tag, or "" for KindUnknown
func (k Kind) Tag() string {
	return kindTags[k]
}

// KindFromTag looks up a wire tag. Tags are case-sensitive.
func KindFromTag(tag string) (Kind, bool) {
	k, ok := tagKinds[tag]
	return k, ok
}

// Kinds returns every known kind in declaration order
func Kinds() []Kind {
	return []Kind{KindPing, KindSetZone, KindSetDateTime, KindGetProgram, KindGetConfig, KindGetInfo}
}

// Direction tells whether a message was built locally or received
type Direction int

// Directions
const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "in"
	}
	return "out"
}

// The controller numbers months from 0 and weekdays from 1 (Sunday).
// Hours are sent 0-23.
const (
	wireMonthOffset   = -1
	wireWeekDayOffset = 1
)

// fieldSpec describes a required integer attribute
type fieldSpec struct {
	name     string
	min, max int
}

// required lists the integer attributes each kind must carry, in wire order
var required = map[Kind][]fieldSpec{
	KindSetZone: {
		{FieldChannel, 0, MaxChannel},
		{FieldStatus, ZoneOff, ZoneOn},
	},
	KindSetDateTime: {
		{FieldDay, 1, 31},
		{FieldWeekDay, 1, 7},
		{FieldMonth, 0, 11},
		{FieldYear, MinYear, MaxYear},
		{FieldHour, 0, 23},
		{FieldMinute, 0, 59},
		{FieldSecond, 0, 59},
	},
}
