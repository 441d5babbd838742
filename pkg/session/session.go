// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs an SM100 protocol session over a transport driver:
// a background loop reads the byte stream, frames and decodes it, and fans
// decoded messages out to registered listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radicalsystems/mistctl/pkg/listener"
	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/radicalsystems/mistctl/pkg/transport"
	"github.com/rs/zerolog"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotRunning     = errors.New("session not running")
)

// State is the session lifecycle state
type State int

// Session states
const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Listener receives decoded messages on the session's read loop goroutine.
// Implementations must not block for long and must be comparable (use
// pointer receivers).
type Listener interface {
	OnMessage(m *protocol.Message)
}

// DecodeErrorListener is optionally implemented by listeners that want to
// see frames that failed to decode
type DecodeErrorListener interface {
	OnDecodeError(err *protocol.DecodeError)
}

// TransportListener is optionally implemented by listeners that want modem
// line notifications from the driver
type TransportListener interface {
	OnTransportEvent(n transport.Notification)
}

// SendListener is optionally implemented by listeners that want every
// command successfully written to the driver. It runs on the sending
// goroutine.
type SendListener interface {
	OnSend(m *protocol.Message)
}

type funcListener struct {
	fn func(*protocol.Message)
}

func (f *funcListener) OnMessage(m *protocol.Message) { f.fn(m) }

// ListenerFunc wraps fn as a Listener. Keep the returned value to remove it.
func ListenerFunc(fn func(*protocol.Message)) Listener {
	return &funcListener{fn: fn}
}

// relay is the session's own registration on the driver
type relay struct {
	s *Session
}

func (r *relay) OnTransportEvent(n transport.Notification) {
	r.s.log.Debug().Stringer("event", n.Event).Bool("value", n.Value).Msg("transport event")
	for _, l := range r.s.listeners.Snapshot() {
		if tl, ok := l.(TransportListener); ok {
			tl.OnTransportEvent(n)
		}
	}
}

// Session owns one driver and its read loop
type Session struct {
	driver    transport.Driver
	opts      options
	log       zerolog.Logger
	listeners *listener.Registry[Listener]
	stats     *Statistics
	relay     *relay

	lifeMu sync.Mutex // serializes Start, Stop and SetTarget

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a stopped session over driver
func New(driver transport.Driver, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	stats := o.stats
	if stats == nil {
		stats = NewStatistics()
	}

	s := &Session{
		driver:    driver,
		opts:      o,
		log:       o.log.With().Str("session", driver.Name()).Logger(),
		listeners: listener.NewRegistry[Listener](),
		stats:     stats,
	}
	s.relay = &relay{s: s}
	return s
}

// Driver returns the underlying transport
func (s *Session) Driver() transport.Driver {
	return s.driver
}

// Statistics returns the session counters
func (s *Session) Statistics() *Statistics {
	return s.stats
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the read loop stopped the session on its own, or nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the current read loop exits. It returns nil when the
// session has never been started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// AddListener registers l. Adding a registered listener is a no-op.
// Listeners survive Stop and Start.
func (s *Session) AddListener(l Listener) {
	s.listeners.Add(l)
}

// RemoveListener unregisters l. Removing an unknown listener is a no-op.
func (s *Session) RemoveListener(l Listener) {
	s.listeners.Remove(l)
}

// SetTarget changes the driver endpoint while the session is stopped
func (s *Session) SetTarget(target string) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.State() != Stopped {
		return ErrAlreadyStarted
	}
	return s.driver.SetTarget(target)
}

// Start opens the driver, subscribes to its events and launches the read
// loop. On failure the driver is closed again and the session stays stopped.
func (s *Session) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Starting
	s.mu.Unlock()

	if err := s.driver.Open(); err != nil {
		s.setState(Stopped)
		return fmt.Errorf("failed to start session: %w", err)
	}

	s.driver.AddEventListener(s.relay)
	if err := s.driver.EnableEvents(); err != nil {
		s.driver.RemoveEventListener(s.relay)
		_ = s.driver.Close()
		s.setState(Stopped)
		return fmt.Errorf("failed to enable transport events: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.err = nil
	s.state = Running
	s.mu.Unlock()

	// Each run frames with its own buffer; a loop that outlived Stop
	// never shares state with its successor
	go s.loop(ctx, done, NewFramer(s.opts.maxPending))

	s.log.Info().Str("target", s.driver.Parameters().Target()).Msg("session started")
	return nil
}

// Stop ends the read loop, waiting up to the join timeout, then detaches
// from and closes the driver. Stopping a stopped session is a no-op.
func (s *Session) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	joined := s.join(done)
	if !joined {
		s.log.Warn().Dur("timeout", s.opts.joinTimeout).Msg("read loop did not stop in time, closing transport")
	}

	s.driver.RemoveEventListener(s.relay)
	s.driver.DisableEvents()
	closeErr := s.driver.Close()

	// Closing releases a blocked Read; give the loop one more chance to exit
	if !joined && !s.join(done) {
		s.log.Warn().Msg("read loop still running after close")
	}

	s.setState(Stopped)
	s.log.Info().Msg("session stopped")

	if closeErr != nil {
		return fmt.Errorf("failed to close transport: %w", closeErr)
	}
	return nil
}

func (s *Session) join(done <-chan struct{}) bool {
	timer := time.NewTimer(s.opts.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// loop reads until ctx is cancelled
func (s *Session) loop(ctx context.Context, done chan struct{}, framer *Framer) {
	defer close(done)

	buf := make([]byte, s.opts.bufferSize)
	consecutiveErrors := 0

	for ctx.Err() == nil {
		n, err := s.driver.Read(buf)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			s.stats.readErrors.Inc()
			consecutiveErrors++
			s.log.Debug().Err(err).Int("consecutive", consecutiveErrors).Msg("read failed")

			if s.opts.maxReadErrors > 0 && consecutiveErrors >= s.opts.maxReadErrors {
				s.mu.Lock()
				s.err = fmt.Errorf("%d consecutive read errors: %w", consecutiveErrors, err)
				s.mu.Unlock()
				s.log.Error().Err(err).Int("count", consecutiveErrors).Msg("giving up on transport")
				go s.Stop()
				return
			}
			s.idle(ctx)

		case n > 0:
			consecutiveErrors = 0
			s.stats.bytesIn.Add(uint64(n))
			s.process(framer, buf[:n])

		default:
			consecutiveErrors = 0
			if n == transport.TimedOut {
				s.stats.timeouts.Inc()
			}
			s.idle(ctx)
		}
	}
}

func (s *Session) idle(ctx context.Context) {
	if s.opts.idleDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.opts.idleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// process frames a chunk and dispatches every complete frame in order
func (s *Session) process(framer *Framer, chunk []byte) {
	overflows := framer.Overflows()
	frames := framer.Feed(chunk)
	if d := framer.Overflows() - overflows; d > 0 {
		s.stats.overflows.Add(uint64(d))
		s.log.Warn().Int("limit", s.opts.maxPending).Msg("discarded unterminated input")
	}

	for _, frame := range frames {
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		s.stats.Update(nil, err, nil)
		var decErr *protocol.DecodeError
		if !errors.As(err, &decErr) {
			decErr = &protocol.DecodeError{Raw: string(frame), Reason: err.Error(), Err: err}
		}
		s.log.Warn().Str("frame", decErr.Raw).Str("reason", decErr.Reason).Msg("dropping undecodable frame")
		for _, l := range s.listeners.Snapshot() {
			if el, ok := l.(DecodeErrorListener); ok {
				el.OnDecodeError(decErr)
			}
		}
		return
	}

	anomalies := protocol.ValidateMessage(msg)
	s.stats.Update(msg, nil, anomalies)
	for _, a := range anomalies {
		s.log.Debug().Str("tag", msg.Tag()).Str("anomaly", a.Type.String()).Msg(a.Message)
	}

	// Snapshot per frame: a listener removed now gets no later frames
	for _, l := range s.listeners.Snapshot() {
		l.OnMessage(msg)
	}
}
