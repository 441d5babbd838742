// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mqttbridge republishes session traffic to an MQTT broker.
//
// Topics are laid out under a prefix:
//
//	<prefix>/event/<Tag>      decoded inbound messages (JSON)
//	<prefix>/error            frames that failed to decode (JSON)
//	<prefix>/line/<CTS|DSR>   modem line state, retained ("1" or "0")
package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/radicalsystems/mistctl/pkg/transport"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// DefaultPrefix is the topic prefix used when none is configured
const DefaultPrefix = "mistctl"

// Publisher sends one MQTT message
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Event is the JSON payload published for a decoded message
type Event struct {
	Kind      string            `json:"kind"`
	Direction string            `json:"direction"`
	Time      time.Time         `json:"time"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Raw       string            `json:"raw"`
}

// DecodeFailure is the JSON payload published for an undecodable frame
type DecodeFailure struct {
	Time   time.Time `json:"time"`
	Raw    string    `json:"raw"`
	Reason string    `json:"reason"`
}

// Option configures a Bridge
type Option func(*Bridge)

// WithPrefix sets the topic prefix
func WithPrefix(prefix string) Option {
	return func(b *Bridge) {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithQoS sets the QoS for event topics
func WithQoS(qos byte) Option {
	return func(b *Bridge) {
		if qos <= 2 {
			b.qos = qos
		}
	}
}

// WithLogger sets the bridge logger
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// Bridge is a session listener that publishes everything it receives.
// Publish failures are logged and counted; they never stop the session.
type Bridge struct {
	pub    Publisher
	prefix string
	qos    byte
	log    zerolog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// New creates a bridge over pub
func New(pub Publisher, opts ...Option) *Bridge {
	b := &Bridge{pub: pub, prefix: DefaultPrefix, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Prefix returns the topic prefix
func (b *Bridge) Prefix() string {
	return b.prefix
}

// Published returns the number of messages handed to the broker
func (b *Bridge) Published() uint64 {
	return b.published.Load()
}

// Failed returns the number of publish failures
func (b *Bridge) Failed() uint64 {
	return b.failed.Load()
}

// EventTopic returns the topic for messages of kind k
func (b *Bridge) EventTopic(k protocol.Kind) string {
	return b.prefix + "/event/" + k.Tag()
}

// OnMessage publishes a decoded message
func (b *Bridge) OnMessage(m *protocol.Message) {
	ev := Event{
		Kind:      m.Tag(),
		Direction: m.Direction().String(),
		Time:      m.Timestamp().UTC(),
		Raw:       m.String(),
	}
	if attrs := m.Attrs(); len(attrs) > 0 {
		ev.Attrs = make(map[string]string, len(attrs))
		for _, a := range attrs {
			ev.Attrs[a.Name] = a.Value
		}
	}
	b.publishJSON(b.EventTopic(m.Kind()), b.qos, ev)
}

// OnDecodeError publishes an undecodable frame
func (b *Bridge) OnDecodeError(err *protocol.DecodeError) {
	b.publishJSON(b.prefix+"/error", 0, DecodeFailure{
		Time:   time.Now().UTC(),
		Raw:    err.Raw,
		Reason: err.Reason,
	})
}

// OnTransportEvent publishes the new modem line state as a retained message
func (b *Bridge) OnTransportEvent(n transport.Notification) {
	payload := []byte("0")
	if n.Value {
		payload = []byte("1")
	}
	b.publish(b.prefix+"/line/"+n.Event.String(), 0, true, payload)
}

func (b *Bridge) publishJSON(topic string, qos byte, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.failed.Inc()
		b.log.Error().Err(err).Str("topic", topic).Msg("failed to encode payload")
		return
	}
	b.publish(topic, qos, false, payload)
}

func (b *Bridge) publish(topic string, qos byte, retained bool, payload []byte) {
	if err := b.pub.Publish(topic, qos, retained, payload); err != nil {
		b.failed.Inc()
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return
	}
	b.published.Inc()
}

// ClientOptions configures a broker connection
type ClientOptions struct {
	Broker         string // tcp://host:1883, ssl://host:8883, ws://host/mqtt
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Client is a Publisher backed by a paho MQTT client
type Client struct {
	inner   paho.Client
	timeout time.Duration
}

// ErrPublishTimeout is returned when the broker does not acknowledge in time
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Dial connects to the broker
func Dial(opts ClientOptions) (*Client, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker address required")
	}
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("mistctl-%d", time.Now().UnixNano()%100000)
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}

	p := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(opts.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true)
	if opts.Username != "" {
		p.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		p.SetPassword(opts.Password)
	}

	inner := paho.NewClient(p)
	tok := inner.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out after %s", opts.Broker, opts.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	return &Client{inner: inner, timeout: opts.PublishTimeout}, nil
}

// Publish sends payload and waits up to the publish timeout for the token
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := c.inner.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(c.timeout) {
		return ErrPublishTimeout
	}
	return tok.Error()
}

// Close disconnects, allowing in-flight work a short grace period
func (c *Client) Close() {
	c.inner.Disconnect(250)
}
