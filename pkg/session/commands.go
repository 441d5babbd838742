// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radicalsystems/mistctl/pkg/protocol"
)

// Send writes the encoded form of an outbound message. The driver writes
// the whole frame or reports an error.
func (s *Session) Send(m *protocol.Message) error {
	if m == nil {
		return errors.New("nil message")
	}
	if m.IsInbound() {
		return protocol.ErrInboundMessage
	}
	if s.State() != Running {
		s.stats.commandsFailed.Inc()
		return ErrNotRunning
	}

	data := m.Bytes()
	n, err := s.driver.Write(data)
	if err != nil {
		s.stats.commandsFailed.Inc()
		return fmt.Errorf("failed to send %s: %w", m.Tag(), err)
	}

	s.stats.bytesOut.Add(uint64(n))
	s.stats.commandsSent.Inc()
	s.log.Debug().Str("tag", m.Tag()).Int("bytes", n).Msg("sent command")

	for _, l := range s.listeners.Snapshot() {
		if sl, ok := l.(SendListener); ok {
			sl.OnSend(m)
		}
	}
	return nil
}

// sendCommand collapses build and write failures to a boolean
func (s *Session) sendCommand(m *protocol.Message, err error) bool {
	if err != nil {
		s.stats.commandsFailed.Inc()
		s.log.Warn().Err(err).Msg("command not built")
		return false
	}
	if err := s.Send(m); err != nil {
		s.log.Warn().Err(err).Msg("command not sent")
		return false
	}
	return true
}

// Ping sends a Ping command
func (s *Session) Ping() bool {
	return s.sendCommand(protocol.NewPing(), nil)
}

// SetZone switches a zone valve on or off
func (s *Session) SetZone(channel int, on bool) bool {
	status := protocol.ZoneOff
	if on {
		status = protocol.ZoneOn
	}
	return s.sendCommand(protocol.NewSetZone(channel, status))
}

// SetDateTime sets the controller clock to the calendar fields of t
func (s *Session) SetDateTime(t time.Time) bool {
	return s.sendCommand(protocol.NewSetDateTime(t))
}

// GetProgram requests the named program
func (s *Session) GetProgram(name string) bool {
	return s.sendCommand(protocol.NewGetProgram(name))
}

// GetConfig requests the controller configuration
func (s *Session) GetConfig() bool {
	return s.sendCommand(protocol.NewGetConfig(), nil)
}

// GetInformation requests the controller model and firmware information
func (s *Session) GetInformation() bool {
	return s.sendCommand(protocol.NewGetInfo(), nil)
}

// Request sends m and waits for the first inbound message of the same kind.
// The wait ends with ctx.
func (s *Session) Request(ctx context.Context, m *protocol.Message) (*protocol.Message, error) {
	if m == nil {
		return nil, errors.New("nil message")
	}

	responses := make(chan *protocol.Message, 1)
	l := ListenerFunc(func(in *protocol.Message) {
		if in.Kind() != m.Kind() {
			return
		}
		select {
		case responses <- in:
		default:
		}
	})
	s.AddListener(l)
	defer s.RemoveListener(l)

	if err := s.Send(m); err != nil {
		return nil, err
	}

	select {
	case resp := <-responses:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s response: %w", m.Tag(), ctx.Err())
	}
}
