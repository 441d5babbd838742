// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/radicalsystems/mistctl/pkg/protocol"
)

func decodeFrame(t *testing.T, frame string) *protocol.Message {
	t.Helper()
	m, err := protocol.Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode(%q) error: %v", frame, err)
	}
	return m
}

func TestWriterRecordsSends(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "controller.local:4001")
	if err != nil {
		t.Fatal(err)
	}

	zone, err := protocol.NewSetZone(4, protocol.ZoneOn)
	if err != nil {
		t.Fatal(err)
	}
	w.OnSend(zone)
	w.OnMessage(decodeFrame(t, `<SetZone Channel="4" Status="1" />`))

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	sent := records[0]
	if sent.Direction != protocol.Outbound || sent.Failed() {
		t.Errorf("sent record = %+v", sent)
	}
	if string(sent.Raw) != string(zone.Bytes()) {
		t.Errorf("Raw = %q, want %q", sent.Raw, zone.Bytes())
	}
	m, err := sent.Message()
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if ch, st, ok := m.Zone(); !ok || ch != 4 || st != protocol.ZoneOn {
		t.Errorf("Zone() = %d, %d, %v", ch, st, ok)
	}
	if records[1].Direction != protocol.Inbound {
		t.Errorf("reply Direction = %v", records[1].Direction)
	}
}

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}

	ping := decodeFrame(t, "<Ping />")
	zone := decodeFrame(t, `<SetZone Channel="2" Status="1" />`)
	w.OnMessage(ping)
	w.OnMessage(zone)
	w.OnDecodeError(&protocol.DecodeError{Raw: "<Bogus />", Reason: `unknown tag "Bogus"`})

	if w.Count() != 3 {
		t.Errorf("Count() = %d, want 3", w.Count())
	}
	if w.Err() != nil {
		t.Fatalf("Err() = %v", w.Err())
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	if h := r.Header(); h.Target != "/dev/ttyUSB0" || h.Version != Version {
		t.Errorf("Header() = %+v", h)
	}

	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	m, err := records[1].Message()
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if ch, st, ok := m.Zone(); !ok || ch != 2 || st != 1 {
		t.Errorf("Zone() = %d, %d, %v", ch, st, ok)
	}
	if !records[1].Timestamp().Equal(zone.Timestamp()) {
		t.Errorf("Timestamp() = %v, want %v", records[1].Timestamp(), zone.Timestamp())
	}
	if records[0].Direction != protocol.Inbound {
		t.Errorf("Direction = %v", records[0].Direction)
	}

	if !records[2].Failed() || string(records[2].Raw) != "<Bogus />" {
		t.Errorf("decode error record = %+v", records[2])
	}
	if records[0].Failed() {
		t.Error("good record marked failed")
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestReaderRejectsForeignStreams(t *testing.T) {
	foreign, err := cbor.Marshal(Header{Format: "something-else", Version: Version})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	future, err := cbor.Marshal(Header{Format: Format, Version: Version + 1})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		capture bool
	}{
		{"empty", nil, true},
		{"garbage", []byte{0xff, 0x00}, true},
		{"foreign format", foreign, true},
		{"future version", future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("NewReader() succeeded")
			}
			if got := errors.Is(err, ErrNotCapture); got != tt.capture {
				t.Errorf("errors.Is(%v, ErrNotCapture) = %v, want %v", err, got, tt.capture)
			}
		})
	}
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestWriterKeepsFirstError(t *testing.T) {
	w, err := NewWriter(&failingWriter{n: 1}, "tcp://controller:4001")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}

	first := w.Write(Record{Raw: []byte("<Ping />")})
	if first == nil {
		t.Fatal("Write() succeeded on a full disk")
	}
	if second := w.Write(Record{Raw: []byte("<Ping />")}); second != first {
		t.Errorf("second Write() = %v, want %v", second, first)
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d, want 0", w.Count())
	}
}
