// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/radicalsystems/mistctl/pkg/listener"
	"github.com/radicalsystems/mistctl/pkg/params"
	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/radicalsystems/mistctl/pkg/transport"
)

// fakeDriver is an in-memory transport.Driver
type fakeDriver struct {
	mu        sync.Mutex
	p         params.Parameters
	open      bool
	openErr   error
	eventsErr error
	readErr   error
	writeErr  error
	echo      bool
	timeout   time.Duration
	events    bool
	written   bytes.Buffer
	opens     int

	rx        chan []byte
	closeC    chan struct{}
	listeners *listener.Registry[transport.EventListener]
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		p:         params.Default("fake").WithTarget("/dev/fake0"),
		rx:        make(chan []byte, 64),
		listeners: listener.NewRegistry[transport.EventListener](),
	}
}

func (f *fakeDriver) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return &transport.ConnectionError{Op: "open", Target: f.p.Target(), Err: f.openErr}
	}
	if f.open {
		return transport.ErrAlreadyOpen
	}
	f.open = true
	f.opens++
	f.closeC = make(chan struct{})
	return nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	f.open = false
	close(f.closeC)
	return nil
}

func (f *fakeDriver) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeDriver) Flush() error { return nil }

func (f *fakeDriver) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, transport.ErrNotOpen
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written.Write(p)
	if f.echo {
		f.rx <- append([]byte(nil), p...)
	}
	return len(p), nil
}

func (f *fakeDriver) Read(p []byte) (int, error) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return 0, transport.ErrNotOpen
	}
	readErr, timeout, closeC := f.readErr, f.timeout, f.closeC
	f.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}

	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}
	select {
	case data := <-f.rx:
		return copy(p, data), nil
	case <-timer:
		return transport.TimedOut, nil
	case <-closeC:
		return 0, transport.ErrNotOpen
	}
}

func (f *fakeDriver) IoControl(code, arg int) (int, error) { return -1, nil }

func (f *fakeDriver) AddEventListener(l transport.EventListener) { f.listeners.Add(l) }
func (f *fakeDriver) RemoveEventListener(l transport.EventListener) { f.listeners.Remove(l) }

func (f *fakeDriver) EnableEvents() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return f.eventsErr
	}
	f.events = true
	return nil
}

func (f *fakeDriver) DisableEvents() {
	f.mu.Lock()
	f.events = false
	f.mu.Unlock()
}

func (f *fakeDriver) Name() string { return f.p.Name() }

func (f *fakeDriver) Parameters() params.Parameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p
}

func (f *fakeDriver) SetTarget(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return transport.ErrDriverOpen
	}
	f.p = f.p.WithTarget(target)
	return nil
}

func (f *fakeDriver) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func (f *fakeDriver) raise(n transport.Notification) {
	for _, l := range f.listeners.Snapshot() {
		l.OnTransportEvent(n)
	}
}

func (f *fakeDriver) sent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

var errFault = errors.New("hardware fault")

// collector records everything a session dispatches
type collector struct {
	messages chan *protocol.Message
	decodes  chan *protocol.DecodeError
	events   chan transport.Notification
	sends    chan *protocol.Message
}

func newCollector() *collector {
	return &collector{
		messages: make(chan *protocol.Message, 64),
		decodes:  make(chan *protocol.DecodeError, 64),
		events:   make(chan transport.Notification, 64),
		sends:    make(chan *protocol.Message, 64),
	}
}

func (c *collector) OnMessage(m *protocol.Message) { c.messages <- m }
func (c *collector) OnDecodeError(err *protocol.DecodeError) { c.decodes <- err }
func (c *collector) OnTransportEvent(n transport.Notification) { c.events <- n }
func (c *collector) OnSend(m *protocol.Message) { c.sends <- m }

func (c *collector) next(t *testing.T) *protocol.Message {
	t.Helper()
	select {
	case m := <-c.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func startSession(t *testing.T, d *fakeDriver, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithIdleDelay(time.Millisecond), WithJoinTimeout(200 * time.Millisecond)}, opts...)
	s := New(d, opts...)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
