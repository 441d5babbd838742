// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides a uniform byte transport to an SM100
// controller over a serial port, a TCP socket or a WebSocket serial bridge.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/radicalsystems/mistctl/pkg/listener"
	"github.com/radicalsystems/mistctl/pkg/params"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// TimedOut is the count Read returns when the receive timeout elapsed
// without data
const TimedOut = -1

// IoControl codes
const (
	// IoSetRTS asserts RTS when arg > 0 and clears it otherwise
	IoSetRTS = 1
)

// Driver is a bidirectional byte transport.
//
// Writes are serialized per driver. Read may run concurrently with Write.
// Close releases a Read blocked in another goroutine.
type Driver interface {
	Open() error
	Close() error
	IsOpen() bool
	Flush() error
	Write(p []byte) (int, error)
	// Read returns TimedOut with a nil error when the receive timeout
	// elapses. With a zero timeout it blocks until some data arrives.
	Read(p []byte) (int, error)
	// IoControl applies a backend specific control. Unknown codes return -1.
	IoControl(code, arg int) (int, error)
	AddEventListener(l EventListener)
	RemoveEventListener(l EventListener)
	EnableEvents() error
	DisableEvents()
	Name() string
	Parameters() params.Parameters
	// SetTarget changes the endpoint; only allowed while closed
	SetTarget(target string) error
}

// Event identifies a modem line change
type Event int

// Transport events
const (
	EventCTS Event = iota + 1
	EventDSR
)

func (e Event) String() string {
	switch e {
	case EventCTS:
		return "CTS"
	case EventDSR:
		return "DSR"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Notification is delivered to event listeners on a line change
type Notification struct {
	Event Event
	Value bool
}

// EventListener receives transport notifications.
// Implementations must be comparable; use pointer receivers.
type EventListener interface {
	OnTransportEvent(n Notification)
}

// Errors
var (
	ErrNotOpen     = errors.New("transport not open")
	ErrAlreadyOpen = errors.New("transport already open")
	ErrDriverOpen  = errors.New("cannot change target while open")
)

// ConnectionError reports a failed transport operation
type ConnectionError struct {
	Op     string
	Target string
	Err    error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Option configures a driver
type Option func(*options)

type options struct {
	log              zerolog.Logger
	pollInterval     time.Duration
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	username         string
	password         string
	skipVerify       bool
}

func defaultOptions() options {
	return options{
		log:              zerolog.Nop(),
		pollInterval:     50 * time.Millisecond,
		dialTimeout:      5 * time.Second,
		handshakeTimeout: 10 * time.Second,
	}
}

// WithLogger sets the driver logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPollInterval sets how often the serial backend samples modem lines
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDialTimeout sets the TCP connect timeout used when the receive
// timeout is zero
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithBasicAuth sets WebSocket HTTP Basic credentials
func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithInsecureSkipVerify disables TLS certificate checks for wss:// targets
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *options) { o.skipVerify = skip }
}

// New selects a backend from the parameters target: ws:// and wss:// URLs
// use the WebSocket bridge, host:port (optionally prefixed tcp://) uses TCP,
// anything else is a serial port name.
func New(p params.Parameters, opts ...Option) Driver {
	target := p.Target()
	switch {
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		return NewWebSocket(p, opts...)
	case strings.HasPrefix(target, "tcp://"):
		return NewTCP(p.WithTarget(strings.TrimPrefix(target, "tcp://")), opts...)
	case isHostPort(target):
		return NewTCP(p, opts...)
	default:
		return NewSerial(p, opts...)
	}
}

func isHostPort(s string) bool {
	host, port, err := net.SplitHostPort(s)
	if err != nil || host == "" {
		return false
	}
	_, err = strconv.Atoi(port)
	return err == nil
}

// base holds state shared by all backends
type base struct {
	mu        sync.Mutex // guards params and the backend handle
	writeMu   sync.Mutex // serializes writes; never taken while holding mu
	params    params.Parameters
	open      atomic.Bool
	listeners *listener.Registry[EventListener]
	opts      options
}

func (b *base) init(p params.Parameters, opts []Option) {
	b.opts = defaultOptions()
	for _, opt := range opts {
		opt(&b.opts)
	}
	b.params = p
	b.listeners = listener.NewRegistry[EventListener]()
}

// Name returns the configured name, or the target when unnamed
func (b *base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.params.Name() != "" {
		return b.params.Name()
	}
	return b.params.Target()
}

// Parameters returns the driver's parameters
func (b *base) Parameters() params.Parameters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// IsOpen reports whether the driver holds an open handle
func (b *base) IsOpen() bool {
	return b.open.Load()
}

// SetTarget changes the endpoint while closed
func (b *base) SetTarget(target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open.Load() {
		return ErrDriverOpen
	}
	b.params = b.params.WithTarget(target)
	return nil
}

// AddEventListener registers l; duplicates are ignored
func (b *base) AddEventListener(l EventListener) {
	b.listeners.Add(l)
}

// RemoveEventListener unregisters l; unknown listeners are ignored
func (b *base) RemoveEventListener(l EventListener) {
	b.listeners.Remove(l)
}

func (b *base) notify(n Notification) {
	for _, l := range b.listeners.Snapshot() {
		l.OnTransportEvent(n)
	}
}

func (b *base) target() string {
	return b.Parameters().Target()
}
