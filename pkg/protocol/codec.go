// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DecodeError reports a frame that is not a valid protocol message.
// The session logs it and carries on with the next frame.
type DecodeError struct {
	Raw    string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", e.Raw, e.Reason)
}

// Unwrap returns the underlying parser or field error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// encode renders <Tag a="v" ... />\r\n
func encode(tag string, attrs []Attr) []byte {
	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(tag)
	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		_ = xml.EscapeText(&buf, []byte(a.Value))
		buf.WriteByte('"')
	}
	buf.WriteString(" />")
	buf.WriteString(Terminator)
	return buf.Bytes()
}

// Decode parses one frame, with or without its terminator.
//
// The frame must hold exactly one element with a known tag. Required integer
// attributes must be present and numeric; range checks are left to
// ValidateMessage so out-of-range controller reports still reach listeners.
// Unknown attributes are kept in order.
func Decode(frame []byte) (*Message, error) {
	text := strings.TrimSpace(string(frame))
	fail := func(reason string, err error) (*Message, error) {
		return nil, &DecodeError{Raw: text, Reason: reason, Err: err}
	}
	if text == "" {
		return fail("empty frame", nil)
	}
	if text[0] != '<' {
		return fail("frame does not start with a tag", nil)
	}

	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true

	tok, err := dec.RawToken()
	if err != nil {
		return fail("malformed element", err)
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return fail("frame does not start with an element", nil)
	}

	tag := start.Name.Local
	if start.Name.Space != "" {
		tag = start.Name.Space + ":" + tag
	}
	kind, known := KindFromTag(tag)
	if !known {
		return fail(fmt.Sprintf("unknown tag %q", tag), nil)
	}

	attrs := make([]Attr, 0, len(start.Attr))
	seen := make(map[string]bool, len(start.Attr))
	for _, a := range start.Attr {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + name
		}
		if seen[name] {
			return fail(fmt.Sprintf("duplicate attribute %q", name), nil)
		}
		seen[name] = true
		attrs = append(attrs, Attr{Name: name, Value: a.Value})
	}

	tok, err = dec.RawToken()
	if err != nil {
		return fail("malformed element", err)
	}
	end, ok := tok.(xml.EndElement)
	if !ok || end.Name != start.Name {
		return fail("element has content", nil)
	}
	if _, err := dec.RawToken(); !errors.Is(err, io.EOF) {
		return fail("trailing content after element", err)
	}

	for _, spec := range required[kind] {
		if _, err := intAttr(attrs, spec.name); err != nil {
			return fail(err.Error(), err)
		}
	}
	if kind == KindGetProgram {
		if v, _ := findAttr(attrs, FieldName); v == "" {
			return fail(fmt.Sprintf("%s missing", FieldName), ErrInvalidField)
		}
	}

	raw := make([]byte, len(text))
	copy(raw, text)
	return &Message{
		kind:      kind,
		attrs:     attrs,
		raw:       raw,
		direction: Inbound,
		timestamp: time.Now(),
	}, nil
}
