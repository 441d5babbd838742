// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/radicalsystems/mistctl/pkg/params"
)

// TCP is a Driver over a TCP socket, typically a serial device server.
// Line settings in the parameters are ignored.
type TCP struct {
	base
	conn net.Conn
}

// NewTCP creates a closed TCP driver for a host:port target
func NewTCP(p params.Parameters, opts ...Option) *TCP {
	t := &TCP{}
	t.init(p, opts)
	return t
}

// Open connects to the target. The connect timeout is the receive timeout,
// or the dial timeout option when the receive timeout is zero.
func (t *TCP) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open.Load() {
		return ErrAlreadyOpen
	}
	target := t.params.Target()

	timeout := t.params.ReceiveTimeout()
	if timeout == 0 {
		timeout = t.opts.dialTimeout
	}
	conn, err := net.DialTimeout("tcp", target, timeout)
	if err != nil {
		return &ConnectionError{Op: "open", Target: target, Err: err}
	}

	t.conn = conn
	t.open.Store(true)
	t.opts.log.Debug().Str("addr", target).Msg("tcp connection opened")
	return nil
}

// Close closes the socket. Closing a closed driver is a no-op.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open.Load() {
		return nil
	}
	t.open.Store(false)
	conn := t.conn
	t.conn = nil

	if err := conn.Close(); err != nil {
		return &ConnectionError{Op: "close", Target: t.params.Target(), Err: err}
	}
	t.opts.log.Debug().Str("addr", t.params.Target()).Msg("tcp connection closed")
	return nil
}

func (t *TCP) handle() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Flush discards any bytes already received
func (t *TCP) Flush() error {
	conn := t.handle()
	if conn == nil {
		return &ConnectionError{Op: "flush", Target: t.target(), Err: ErrNotOpen}
	}

	if err := conn.SetReadDeadline(time.Now()); err != nil {
		return &ConnectionError{Op: "flush", Target: t.target(), Err: err}
	}
	defer conn.SetReadDeadline(time.Time{})

	scratch := make([]byte, 512)
	for {
		n, err := conn.Read(scratch)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return &ConnectionError{Op: "flush", Target: t.target(), Err: err}
		}
		if n == 0 {
			return nil
		}
	}
}

// Write sends all of p
func (t *TCP) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn := t.handle()
	if conn == nil {
		return 0, &ConnectionError{Op: "write", Target: t.target(), Err: ErrNotOpen}
	}
	// net.Conn writes the whole buffer or returns an error
	n, err := conn.Write(p)
	if err != nil {
		return n, &ConnectionError{Op: "write", Target: t.target(), Err: err}
	}
	return n, nil
}

// Read reads whatever is available, waiting at most the receive timeout
func (t *TCP) Read(p []byte) (int, error) {
	conn := t.handle()
	if conn == nil {
		return 0, &ConnectionError{Op: "read", Target: t.target(), Err: ErrNotOpen}
	}

	var deadline time.Time
	if timeout := t.Parameters().ReceiveTimeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, &ConnectionError{Op: "read", Target: t.target(), Err: err}
	}

	n, err := conn.Read(p)
	if err != nil {
		if n == 0 && isTimeout(err) {
			return TimedOut, nil
		}
		if !t.open.Load() {
			return n, &ConnectionError{Op: "read", Target: t.target(), Err: ErrNotOpen}
		}
		return n, &ConnectionError{Op: "read", Target: t.target(), Err: err}
	}
	return n, nil
}

// IoControl has no TCP controls and always returns -1
func (t *TCP) IoControl(code, arg int) (int, error) {
	return -1, nil
}

// EnableEvents succeeds on an open socket; TCP never emits events
func (t *TCP) EnableEvents() error {
	if !t.open.Load() {
		return &ConnectionError{Op: "events", Target: t.target(), Err: ErrNotOpen}
	}
	return nil
}

// DisableEvents is a no-op
func (t *TCP) DisableEvents() {}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
