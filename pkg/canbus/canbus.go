// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package canbus moves otscan frames over a transport: an SLCAN adapter on
// a serial port or websocket, or an in-memory loopback for tests and the
// audio module simulator.
package canbus

import (
	"context"
	"errors"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// ErrClosed is returned by Send and Receive after Close
var ErrClosed = errors.New("bus closed")

// Bus sends and receives CAN frames
type Bus interface {
	Send(ctx context.Context, f otscan.Frame) error
	Receive(ctx context.Context) (otscan.Frame, error)
	Close() error
}
