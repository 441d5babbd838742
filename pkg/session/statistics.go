// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"

	"github.com/radicalsystems/mistctl/pkg/protocol"
	"go.uber.org/atomic"
)

// Statistics tracks traffic and error counters for a session.
// Counters are updated from the read loop and from senders concurrently.
type Statistics struct {
	startTime atomic.Time

	bytesIn        atomic.Uint64
	bytesOut       atomic.Uint64
	frames         atomic.Uint64
	messages       atomic.Uint64
	decodeErrors   atomic.Uint64
	anomalies      atomic.Uint64
	readErrors     atomic.Uint64
	timeouts       atomic.Uint64
	commandsSent   atomic.Uint64
	commandsFailed atomic.Uint64
	overflows      atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Elapsed time.Duration

	BytesIn        uint64
	BytesOut       uint64
	Frames         uint64
	Messages       uint64
	DecodeErrors   uint64
	Anomalies      uint64
	ReadErrors     uint64
	Timeouts       uint64
	CommandsSent   uint64
	CommandsFailed uint64
	Overflows      uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startTime.Store(time.Now())
	return s
}

// Update records one framed unit and the outcome of decoding it
func (s *Statistics) Update(msg *protocol.Message, decodeErr error, validationErrors []protocol.ValidationError) {
	s.frames.Inc()
	if decodeErr != nil {
		s.decodeErrors.Inc()
		return
	}
	if msg != nil {
		s.messages.Inc()
	}
	s.anomalies.Add(uint64(len(validationErrors)))
}

// Snapshot copies the counters and calculates rates
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Elapsed:        time.Since(s.startTime.Load()),
		BytesIn:        s.bytesIn.Load(),
		BytesOut:       s.bytesOut.Load(),
		Frames:         s.frames.Load(),
		Messages:       s.messages.Load(),
		DecodeErrors:   s.decodeErrors.Load(),
		Anomalies:      s.anomalies.Load(),
		ReadErrors:     s.readErrors.Load(),
		Timeouts:       s.timeouts.Load(),
		CommandsSent:   s.commandsSent.Load(),
		CommandsFailed: s.commandsFailed.Load(),
		Overflows:      s.overflows.Load(),
	}
	if elapsed := snap.Elapsed.Seconds(); elapsed > 0 {
		snap.MessageRate = float64(snap.Messages) / elapsed
		errorCount := snap.DecodeErrors + snap.ReadErrors + snap.CommandsFailed + snap.Overflows
		snap.ErrorRate = float64(errorCount) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent, decodeErrorPercent float64
	if snap.Frames > 0 {
		validPercent = float64(snap.Messages) * 100.0 / float64(snap.Frames)
		decodeErrorPercent = float64(snap.DecodeErrors) * 100.0 / float64(snap.Frames)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	result += fmt.Sprintf("Bytes In/Out:    %8d / %d\n", snap.BytesIn, snap.BytesOut)
	result += fmt.Sprintf("Total Frames:    %8d\n", snap.Frames)
	result += fmt.Sprintf("Messages:        %8d (%.1f%%)\n", snap.Messages, validPercent)

	if snap.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", snap.DecodeErrors, decodeErrorPercent)
	}
	if snap.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", snap.Anomalies)
	}
	if snap.Overflows > 0 {
		result += fmt.Sprintf("Buffer Overflow: %8d\n", snap.Overflows)
	}
	if snap.ReadErrors > 0 {
		result += fmt.Sprintf("Read Errors:     %8d\n", snap.ReadErrors)
	}
	result += fmt.Sprintf("Read Timeouts:   %8d\n", snap.Timeouts)
	result += fmt.Sprintf("Commands Sent:   %8d\n", snap.CommandsSent)
	if snap.CommandsFailed > 0 {
		result += fmt.Sprintf("Commands Failed: %8d\n", snap.CommandsFailed)
	}

	result += fmt.Sprintf("Message Rate:    %8.1f msgs/sec\n", snap.MessageRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.startTime.Store(time.Now())
	s.bytesIn.Store(0)
	s.bytesOut.Store(0)
	s.frames.Store(0)
	s.messages.Store(0)
	s.decodeErrors.Store(0)
	s.anomalies.Store(0)
	s.readErrors.Store(0)
	s.timeouts.Store(0)
	s.commandsSent.Store(0)
	s.commandsFailed.Store(0)
	s.overflows.Store(0)
}
