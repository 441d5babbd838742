// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records session traffic as a CBOR sequence and reads it
// back for replay.
//
// A capture is a header item followed by one record item per frame. Both
// use integer map keys to keep records small on long captures.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/radicalsystems/mistctl/pkg/protocol"
)

// Format identifies capture files
const Format = "mistctl-capture"

// Version is the record layout version written by this package
const Version = 1

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("not a capture stream")

// Header is the first item of a capture
type Header struct {
	Format  string `cbor:"1,keyasint"`
	Version uint   `cbor:"2,keyasint"`
	Target  string `cbor:"3,keyasint"`
	Started int64  `cbor:"4,keyasint"` // unix nanoseconds
}

// StartTime returns when the capture began
func (h Header) StartTime() time.Time {
	return time.Unix(0, h.Started)
}

// Record is one captured frame
type Record struct {
	Time      int64              `cbor:"1,keyasint"` // unix nanoseconds
	Direction protocol.Direction `cbor:"2,keyasint"`
	Raw       []byte             `cbor:"3,keyasint"`
	Error     string             `cbor:"4,keyasint,omitempty"`
}

// Timestamp returns when the frame was captured
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Failed reports whether the frame did not decode when captured
func (r Record) Failed() bool {
	return r.Error != ""
}

// Message decodes the captured frame again. The result always reports
// itself inbound; Direction says which way the frame travelled.
func (r Record) Message() (*protocol.Message, error) {
	return protocol.Decode(r.Raw)
}

// Writer appends records to a stream. It implements the session listener
// interfaces for messages, sent commands and decode errors, so it can be
// registered directly on a session.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count int
	err   error
}

// NewWriter writes a capture header for target to w
func NewWriter(w io.Writer, target string) (*Writer, error) {
	enc := cbor.NewEncoder(w)
	h := Header{
		Format:  Format,
		Version: Version,
		Target:  target,
		Started: time.Now().UnixNano(),
	}
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one record. After the first failure every call returns
// that error.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.enc.Encode(rec); err != nil {
		w.err = fmt.Errorf("failed to write capture record: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// OnMessage records a decoded message
func (w *Writer) OnMessage(m *protocol.Message) {
	_ = w.Write(Record{
		Time:      m.Timestamp().UnixNano(),
		Direction: m.Direction(),
		Raw:       m.Raw(),
	})
}

// OnSend records a command written to the controller
func (w *Writer) OnSend(m *protocol.Message) {
	_ = w.Write(Record{
		Time:      time.Now().UnixNano(),
		Direction: protocol.Outbound,
		Raw:       m.Raw(),
	})
}

// OnDecodeError records a frame that failed to decode
func (w *Writer) OnDecodeError(err *protocol.DecodeError) {
	_ = w.Write(Record{
		Time:      time.Now().UnixNano(),
		Direction: protocol.Inbound,
		Raw:       []byte(err.Raw),
		Error:     err.Reason,
	})
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Err returns the first write error, if any
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Reader iterates over the records of a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header from r
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotCapture
		}
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if h.Format != Format {
		return nil, ErrNotCapture
	}
	if h.Version != Version {
		return nil, fmt.Errorf("unsupported capture version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns the remaining records
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
