// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultBufferSize  = 1000
	DefaultIdleDelay   = 100 * time.Millisecond
	DefaultJoinTimeout = 2 * time.Second
)

// Option configures a Session
type Option func(*options)

type options struct {
	log           zerolog.Logger
	bufferSize    int
	idleDelay     time.Duration
	joinTimeout   time.Duration
	maxReadErrors int
	maxPending    int
	stats         *Statistics
}

func defaultOptions() options {
	return options{
		log:         zerolog.Nop(),
		bufferSize:  DefaultBufferSize,
		idleDelay:   DefaultIdleDelay,
		joinTimeout: DefaultJoinTimeout,
	}
}

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithBufferSize sets the read scratch buffer size
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithIdleDelay sets the pause after a read returns no data or fails
func WithIdleDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.idleDelay = d
		}
	}
}

// WithJoinTimeout bounds how long Stop waits for the read loop
func WithJoinTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.joinTimeout = d
		}
	}
}

// WithMaxReadErrors stops the session after n consecutive read errors.
// Zero, the default, retries forever.
func WithMaxReadErrors(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxReadErrors = n
		}
	}
}

// WithMaxPending limits the unterminated bytes kept between reads.
// Zero, the default, keeps them until a terminator arrives.
func WithMaxPending(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxPending = n
		}
	}
}

// WithStatistics shares a statistics tracker, e.g. across reconnects
func WithStatistics(s *Statistics) Option {
	return func(o *options) {
		if s != nil {
			o.stats = s
		}
	}
}
