// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package eventfeed connects to the game server and delivers its events.
//
// Text frames carry JSON messages and binary frames carry the same shape
// encoded as CBOR. The client reconnects with exponential backoff until
// its context is cancelled.
package eventfeed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Reconnect backoff bounds
const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

const (
	outboxSize   = 16
	writeTimeout = 5 * time.Second
)

// Handler receives every decoded message
type Handler func(ctx context.Context, msg events.Message) error

// Config configures a Client
type Config struct {
	Endpoint
	ClientType string // sent in the handshake, "firmware" when empty

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client is a reconnecting event feed
type Client struct {
	cfg       Config
	handler   Handler
	log       zerolog.Logger
	outbox    chan []byte
	connected atomic.Bool
}

// New creates a client. Nothing is dialed until Run.
func New(cfg Config, handler Handler, log zerolog.Logger) (*Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("event feed needs a handler: %w", result.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, result.ErrInvalidArgument)
	}
	if cfg.ClientType == "" {
		cfg.ClientType = "firmware"
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = DefaultMaxBackoff
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}

	return &Client{
		cfg:     cfg,
		handler: handler,
		log:     log.With().Str("component", "eventfeed").Str("url", cfg.URL).Logger(),
		outbox:  make(chan []byte, outboxSize),
	}, nil
}

// Connected reports whether a connection is currently up
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Publish queues an event for the server. It never blocks: when the
// outbox is full the event is dropped with ErrResourceExhausted.
func (c *Client) Publish(ctx context.Context, ev *events.Event) error {
	b, err := events.EncodeJSON(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	select {
	case c.outbox <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Warn().Stringer("type", ev.Type).Msg("outbox full, event dropped")
		return fmt.Errorf("event feed outbox: %w", result.ErrResourceExhausted)
	}
}

// Run connects and serves until ctx is cancelled, reconnecting on failure
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	for {
		conn, err := Dial(ctx, c.cfg.Endpoint)
		if err == nil {
			c.log.Info().Msg("connected")
			backoff = c.cfg.MinBackoff
			err = c.serve(ctx, conn)
			conn.Close()
			c.connected.Store(false)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("event feed disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	hs, err := events.BuildHandshake(c.cfg.ClientType)
	if err != nil {
		return err
	}
	if err := c.write(conn, hs); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	c.connected.Store(true)

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(ctx, conn) }()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			return err
		case b := <-c.outbox:
			if err := c.write(conn, b); err != nil {
				conn.Close()
				<-readErr
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// ErrUnsupportedMessage is logged for frames that are neither text nor binary
var ErrUnsupportedMessage = errors.New("unsupported websocket message type")

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := decode(mt, data)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable message")
			continue
		}
		if err := c.handler(ctx, msg); err != nil {
			c.log.Warn().Err(err).Str("kind", msg.Kind).Msg("handler failed")
		}
	}
}

func decode(messageType int, data []byte) (events.Message, error) {
	switch messageType {
	case websocket.TextMessage:
		return events.ParseJSON(data)
	case websocket.BinaryMessage:
		return events.ParseCBOR(data)
	default:
		return events.Message{}, ErrUnsupportedMessage
	}
}
