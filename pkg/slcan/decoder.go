// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// ErrAdapter is returned when the adapter answers a command with BELL
var ErrAdapter = errors.New("slcan adapter error")

// Decoder accumulates bytes from an adapter into SLCAN lines
type Decoder struct {
	buffer   []byte
	overflow bool
}

// NewDecoder creates a new SLCAN decoder
func NewDecoder() *Decoder {
	return &Decoder{buffer: make([]byte, 0, MaxLineLength)}
}

// Reset discards any partial line
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
	d.overflow = false
}

// DecodeByte processes a single byte.
// Returns a completed frame, or nil if the line is incomplete or was not
// a frame (command acks such as "z" and bare CR are swallowed).
func (d *Decoder) DecodeByte(b byte) (*otscan.Frame, error) {
	switch b {
	case BELL:
		d.Reset()
		return nil, ErrAdapter
	case '\n':
		return nil, nil
	case CR:
		line := d.buffer
		overflow := d.overflow
		defer d.Reset()

		if overflow {
			return nil, fmt.Errorf("line overflow (max %d bytes)", MaxLineLength)
		}
		if len(line) == 0 {
			return nil, nil
		}
		switch line[0] {
		case 't', 'T', 'r', 'R':
			return ParseLine(line)
		default:
			// z/Z transmit acks, version and status replies
			return nil, nil
		}
	}

	if len(d.buffer) >= MaxLineLength {
		d.overflow = true
		return nil, nil
	}
	d.buffer = append(d.buffer, b)
	return nil, nil
}
