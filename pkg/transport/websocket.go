// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/radicalsystems/mistctl/pkg/params"
)

// ErrConnectionClosed is returned when the bridge closed the WebSocket
var ErrConnectionClosed = errors.New("websocket connection closed")

// closeGrace bounds the close handshake write
const closeGrace = time.Second

// WebSocket is a Driver over a WebSocket serial bridge carrying raw bytes in
// binary messages
type WebSocket struct {
	base
	conn *websocket.Conn

	// Reader goroutine output. frames is closed when the connection fails.
	frames  chan []byte
	readErr error
	done    chan struct{}

	readMu    sync.Mutex
	buf       []byte
	bufOffset int
}

// NewWebSocket creates a closed WebSocket driver for a ws:// or wss:// URL
func NewWebSocket(p params.Parameters, opts ...Option) *WebSocket {
	w := &WebSocket{}
	w.init(p, opts)
	return w
}

// Open dials the bridge with optional HTTP Basic auth
func (w *WebSocket) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.open.Load() {
		return ErrAlreadyOpen
	}
	target := w.params.Target()

	u, err := url.Parse(target)
	if err != nil {
		return &ConnectionError{Op: "open", Target: target, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return &ConnectionError{Op: "open", Target: target, Err: &params.ConfigurationError{
			Field: "url", Value: u.Scheme, Reason: "unsupported scheme (use ws:// or wss://)",
		}}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.opts.handshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: w.opts.skipVerify,
		}
	}

	headers := http.Header{}
	if w.opts.username != "" && w.opts.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.opts.username + ":" + w.opts.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.handshakeTimeout+5*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
		}
		return &ConnectionError{Op: "open", Target: target, Err: err}
	}

	w.conn = conn
	w.frames = make(chan []byte, 16)
	w.done = make(chan struct{})
	w.readErr = nil
	w.readMu.Lock()
	w.buf, w.bufOffset = nil, 0
	w.readMu.Unlock()

	go w.readLoop(conn, w.frames, w.done)

	w.open.Store(true)
	w.opts.log.Debug().Str("url", target).Msg("websocket connected")
	return nil
}

// readLoop moves binary messages onto frames so Read can time out without
// abandoning a ReadMessage call
func (w *WebSocket) readLoop(conn *websocket.Conn, frames chan<- []byte, done <-chan struct{}) {
	defer close(frames)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case frames <- data:
		case <-done:
			return
		}
	}
}

// Close closes the WebSocket. Closing a closed driver is a no-op.
// A Write blocked on a stalled bridge fails once the socket is closed.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if !w.open.Load() {
		w.mu.Unlock()
		return nil
	}
	w.open.Store(false)
	close(w.done)
	conn := w.conn
	w.conn = nil
	target := w.params.Target()
	w.mu.Unlock()

	// WriteControl may run concurrently with WriteMessage; it gives up at
	// the deadline when a pending write holds the connection
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))

	if err := conn.Close(); err != nil {
		return &ConnectionError{Op: "close", Target: target, Err: err}
	}
	w.opts.log.Debug().Str("url", target).Msg("websocket closed")
	return nil
}

func (w *WebSocket) state() (*websocket.Conn, <-chan []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn, w.frames
}

func (w *WebSocket) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
	}
	return ErrConnectionClosed
}

// Flush discards received bytes not yet read
func (w *WebSocket) Flush() error {
	conn, frames := w.state()
	if conn == nil {
		return &ConnectionError{Op: "flush", Target: w.target(), Err: ErrNotOpen}
	}

	w.readMu.Lock()
	defer w.readMu.Unlock()
	w.buf, w.bufOffset = nil, 0
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) (int, error) {
	conn, _ := w.state()
	if conn == nil {
		return 0, &ConnectionError{Op: "write", Target: w.target(), Err: ErrNotOpen}
	}

	w.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, p)
	w.writeMu.Unlock()

	if err != nil {
		return 0, &ConnectionError{Op: "write", Target: w.target(), Err: err}
	}
	return len(p), nil
}

// Read returns buffered bytes first, then waits for the next message up to
// the receive timeout
func (w *WebSocket) Read(p []byte) (int, error) {
	conn, frames := w.state()
	if conn == nil {
		return 0, &ConnectionError{Op: "read", Target: w.target(), Err: ErrNotOpen}
	}

	w.readMu.Lock()
	defer w.readMu.Unlock()

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	var timeoutC <-chan time.Time
	if timeout := w.Parameters().ReceiveTimeout(); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case data, ok := <-frames:
		if !ok {
			return 0, &ConnectionError{Op: "read", Target: w.target(), Err: w.closedErr()}
		}
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-timeoutC:
		return TimedOut, nil
	}
}

// IoControl has no WebSocket controls and always returns -1
func (w *WebSocket) IoControl(code, arg int) (int, error) {
	return -1, nil
}

// EnableEvents succeeds on an open connection; the bridge never emits events
func (w *WebSocket) EnableEvents() error {
	if !w.open.Load() {
		return &ConnectionError{Op: "events", Target: w.target(), Err: ErrNotOpen}
	}
	return nil
}

// DisableEvents is a no-op
func (w *WebSocket) DisableEvents() {}
