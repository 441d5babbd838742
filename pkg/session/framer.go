// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"

	"github.com/radicalsystems/mistctl/pkg/protocol"
)

var terminator = []byte(protocol.Terminator)

// Framer splits a byte stream into CR LF terminated frames.
//
// Bytes after the last terminator are kept and prefixed to the next Feed, so
// a frame split across reads is reassembled. Empty frames are skipped.
// A Framer is not safe for concurrent use.
type Framer struct {
	buf        []byte
	maxPending int
	overflows  int
}

// NewFramer creates a framer. When maxPending > 0 an unterminated remainder
// longer than maxPending bytes is discarded; zero keeps it indefinitely.
func NewFramer(maxPending int) *Framer {
	return &Framer{maxPending: maxPending}
}

// Feed appends p and returns the complete frames now available, in stream
// order, without terminators. Returned slices are owned by the caller.
func (f *Framer) Feed(p []byte) [][]byte {
	f.buf = append(f.buf, p...)

	var frames [][]byte
	start := 0
	for {
		idx := bytes.Index(f.buf[start:], terminator)
		if idx < 0 {
			break
		}
		if idx > 0 {
			frame := make([]byte, idx)
			copy(frame, f.buf[start:start+idx])
			frames = append(frames, frame)
		}
		start += idx + len(terminator)
	}

	// Retain the partial tail at the front of the buffer
	n := copy(f.buf, f.buf[start:])
	f.buf = f.buf[:n]

	if f.maxPending > 0 && len(f.buf) > f.maxPending {
		f.buf = f.buf[:0]
		f.overflows++
	}
	return frames
}

// Pending returns a copy of the unterminated bytes held for the next Feed
func (f *Framer) Pending() []byte {
	return append([]byte(nil), f.buf...)
}

// Overflows returns how many times the pending buffer was discarded
func (f *Framer) Overflows() int {
	return f.overflows
}

// Reset drops any pending bytes
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
