// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/eventfeed"
)

// Password environment variables
const (
	envBridgePassword = "OTS_PASSWORD"
	envEventsPassword = "OTS_EVENTS_PASSWORD"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// WebSocketConnection turns a WebSocket SLCAN bridge into a byte stream
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// The bus stops reading on EOF
	if w.closed {
		return 0, io.EOF
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		// SLCAN is ASCII, bridges send it either way
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, ep eventfeed.Endpoint) (Connection, error) {
	conn, err := eventfeed.Dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves a password from envVar or prompts the user
func GetPassword(envVar string) (string, error) {
	if pw := os.Getenv(envVar); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on config
func OpenConnection(ctx context.Context) (Connection, string, error) {
	if wsURL := config.GetString(config.KeyBridgeURL); wsURL != "" {
		ep := eventfeed.Endpoint{
			URL:           wsURL,
			Username:      config.GetString(config.KeyBridgeUsername),
			SkipSSLVerify: config.GetBool(config.KeyBridgeNoVerify),
		}
		if ep.Username != "" {
			var err error
			ep.Password, err = GetPassword(envBridgePassword)
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(ctx, ep)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName := config.GetString(config.KeySerialPort); portName != "" {
		baudRate := config.GetInt(config.KeySerialBaud)
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenBus opens the configured connection and starts SLCAN on it
func OpenBus(ctx context.Context) (*canbus.StreamBus, string, error) {
	conn, info, err := OpenConnection(ctx)
	if err != nil {
		return nil, "", err
	}

	bitrate := config.GetInt(config.KeyCANBitrate)
	bus, err := canbus.NewStreamBus(conn, bitrate, logger)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	if bitrate != 0 {
		info += fmt.Sprintf(", CAN %d bit/s", bitrate)
	}
	return bus, info, nil
}
