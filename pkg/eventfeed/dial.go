// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package eventfeed

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// HandshakeTimeout bounds the WebSocket upgrade
const HandshakeTimeout = 10 * time.Second

// Endpoint describes a WebSocket server
type Endpoint struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Validate checks that the URL parses and uses ws:// or wss://
func (e Endpoint) Validate() error {
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return nil
	default:
		return fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}
}

// Dial opens a WebSocket connection, sending HTTP Basic auth when both a
// username and a password are set.
func Dial(ctx context.Context, ep Endpoint) (*websocket.Conn, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: ep.SkipSSLVerify,
		},
	}

	headers := http.Header{}
	if ep.Username != "" && ep.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(ep.Username + ":" + ep.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, ep.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}
