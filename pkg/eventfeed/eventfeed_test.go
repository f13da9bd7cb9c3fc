// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eventfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// fakeServer accepts connections and records what clients send
type fakeServer struct {
	*httptest.Server
	upgrader    websocket.Upgrader
	connections atomic.Int32
	auth        chan string
	received    chan []byte
	onConnect   func(n int32, conn *websocket.Conn)
}

func newFakeServer(t *testing.T, onConnect func(n int32, conn *websocket.Conn)) *fakeServer {
	t.Helper()
	s := &fakeServer{
		auth:      make(chan string, 8),
		received:  make(chan []byte, 32),
		onConnect: onConnect,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	n := s.connections.Add(1)
	s.auth <- r.Header.Get("Authorization")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.received <- data
		}
	}()

	if s.onConnect != nil {
		s.onConnect(n, conn)
	}
	<-done
}

func (s *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

type collector struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (c *collector) handle(ctx context.Context, msg events.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *collector) get(i int) events.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[i]
}

func runClient(t *testing.T, cfg Config, h Handler) *Client {
	t.Helper()
	c, err := New(cfg, h, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func waitReceived(t *testing.T, s *fakeServer) []byte {
	t.Helper()
	select {
	case b := <-s.received:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestNew_Validation(t *testing.T) {
	noop := func(context.Context, events.Message) error { return nil }

	_, err := New(Config{Endpoint: Endpoint{URL: "ws://localhost/ws"}}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, result.ErrInvalidArgument)

	_, err = New(Config{Endpoint: Endpoint{URL: "http://localhost/ws"}}, noop, zerolog.Nop())
	assert.ErrorIs(t, err, result.ErrInvalidArgument)

	_, err = New(Config{Endpoint: Endpoint{URL: "://bad"}}, noop, zerolog.Nop())
	assert.ErrorIs(t, err, result.ErrInvalidArgument)

	c, err := New(Config{Endpoint: Endpoint{URL: "wss://ots.example/ws"}}, noop, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "firmware", c.cfg.ClientType)
	assert.Equal(t, DefaultMinBackoff, c.cfg.MinBackoff)
	assert.Equal(t, DefaultMaxBackoff, c.cfg.MaxBackoff)
	assert.False(t, c.Connected())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(16*time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(30*time.Second, 30*time.Second))
}

func TestClient_HandshakeAndEvents(t *testing.T) {
	cborEvent, err := events.EncodeCBOR(&events.Event{Type: events.AlertNaval, Timestamp: 5})
	require.NoError(t, err)

	server := newFakeServer(t, func(n int32, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"event","payload":{"type":"GAME_START"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.BinaryMessage, cborEvent)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"cmd","payload":{"action":"send-nuke","params":{"nukeType":"atom"}}}`))
	})

	got := &collector{}
	client := runClient(t, Config{
		Endpoint:   Endpoint{URL: server.wsURL(), Username: "ots", Password: "secret"},
		ClientType: "bridge",
	}, got.handle)

	assert.JSONEq(t, `{"type":"handshake","clientType":"bridge"}`, string(waitReceived(t, server)))
	assert.Equal(t, "Basic b3RzOnNlY3JldA==", <-server.auth)

	require.Eventually(t, func() bool { return got.len() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, events.GameStart, got.get(0).Event.Type)
	assert.Equal(t, events.AlertNaval, got.get(1).Event.Type)
	require.NotNil(t, got.get(2).Command)
	assert.Equal(t, "send-nuke", got.get(2).Command.Action)
	assert.True(t, client.Connected())
}

func TestClient_NoAuthWithoutPassword(t *testing.T) {
	server := newFakeServer(t, nil)
	runClient(t, Config{Endpoint: Endpoint{URL: server.wsURL(), Username: "ots"}}, (&collector{}).handle)

	select {
	case h := <-server.auth:
		assert.Empty(t, h)
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
}

func TestClient_Publish(t *testing.T) {
	server := newFakeServer(t, nil)
	client := runClient(t, Config{Endpoint: Endpoint{URL: server.wsURL()}}, (&collector{}).handle)

	waitReceived(t, server) // handshake

	ev := &events.Event{Type: events.HydroLaunched, Timestamp: 42, Message: "Nuke sent",
		Data: map[string]interface{}{"nukeType": "hydro"}}
	require.NoError(t, client.Publish(context.Background(), ev))

	msg, err := events.ParseJSON(waitReceived(t, server))
	require.NoError(t, err)
	require.NotNil(t, msg.Event)
	assert.Equal(t, events.HydroLaunched, msg.Event.Type)
	assert.Equal(t, uint64(42), msg.Event.Timestamp)
}

func TestClient_PublishOutboxFull(t *testing.T) {
	c, err := New(Config{Endpoint: Endpoint{URL: "ws://127.0.0.1:1/ws"}},
		(&collector{}).handle, zerolog.Nop())
	require.NoError(t, err)

	ev := &events.Event{Type: events.Info}
	for i := 0; i < outboxSize; i++ {
		require.NoError(t, c.Publish(context.Background(), ev))
	}
	assert.ErrorIs(t, c.Publish(context.Background(), ev), result.ErrResourceExhausted)
}

func TestClient_Reconnects(t *testing.T) {
	server := newFakeServer(t, func(n int32, conn *websocket.Conn) {
		if n == 1 {
			conn.Close()
		}
	})

	runClient(t, Config{
		Endpoint:   Endpoint{URL: server.wsURL()},
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	}, (&collector{}).handle)

	assert.Eventually(t, func() bool { return server.connections.Load() >= 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestClient_StopsOnCancel(t *testing.T) {
	server := newFakeServer(t, nil)
	c, err := New(Config{Endpoint: Endpoint{URL: server.wsURL()}}, (&collector{}).handle, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitReceived(t, server)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.Connected())
}
