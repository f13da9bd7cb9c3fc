// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package slcan implements the Lawicel serial-line CAN (SLCAN) ASCII
// protocol used by USB-CAN adapters.
//
// Frames travel as single lines terminated by '\r':
//
//	tiiiLdd..   standard data frame   (iii = 11-bit id in hex)
//	Tiiiiiiiildd.. extended data frame (29-bit id)
//	riiiL       standard remote frame
//	RiiiiiiiiL  extended remote frame
//
// An optional four hex digit timestamp may follow the data.
package slcan

import (
	"fmt"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// Line control bytes
const (
	CR   = '\r'
	BELL = 0x07 // adapter error response
)

// MaxLineLength is the longest valid SLCAN line excluding CR:
// 'T' + 8 id + 1 dlc + 16 data + 4 timestamp
const MaxLineLength = 30

// Adapter commands
var (
	OpenCommand  = []byte("O\r")
	CloseCommand = []byte("C\r")
)

var bitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// BitrateCommand returns the Sn command for a standard bus bitrate
func BitrateCommand(bitrate int) ([]byte, error) {
	code, ok := bitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported bitrate: %d", bitrate)
	}
	return []byte{'S', code, CR}, nil
}

const hexDigits = "0123456789ABCDEF"

// Encode converts a frame to its SLCAN line, including the trailing CR
func Encode(f *otscan.Frame) []byte {
	n := f.Length
	if n > otscan.MaxDataLength {
		n = otscan.MaxDataLength
	}

	out := make([]byte, 0, MaxLineLength+1)
	idDigits := 3
	switch {
	case f.Extended && f.RTR:
		out = append(out, 'R')
		idDigits = 8
	case f.Extended:
		out = append(out, 'T')
		idDigits = 8
	case f.RTR:
		out = append(out, 'r')
	default:
		out = append(out, 't')
	}

	for i := idDigits - 1; i >= 0; i-- {
		out = append(out, hexDigits[(f.ID>>(uint(i)*4))&0xF])
	}
	out = append(out, hexDigits[n])

	if !f.RTR {
		for _, b := range f.Data[:n] {
			out = append(out, hexDigits[b>>4], hexDigits[b&0xF])
		}
	}
	return append(out, CR)
}

// ParseLine parses one SLCAN frame line without its terminating CR
func ParseLine(line []byte) (*otscan.Frame, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	f := &otscan.Frame{}
	idDigits := 3
	switch line[0] {
	case 't':
	case 'T':
		f.Extended = true
		idDigits = 8
	case 'r':
		f.RTR = true
	case 'R':
		f.Extended = true
		f.RTR = true
		idDigits = 8
	default:
		return nil, fmt.Errorf("unknown frame type %q", line[0])
	}

	pos := 1
	if len(line) < pos+idDigits+1 {
		return nil, fmt.Errorf("line too short: %d bytes", len(line))
	}

	id, err := parseHex(line[pos : pos+idDigits])
	if err != nil {
		return nil, fmt.Errorf("bad id: %w", err)
	}
	limit := uint32(otscan.MaxStandardID)
	if f.Extended {
		limit = otscan.MaxExtendedID
	}
	if id > limit {
		return nil, fmt.Errorf("id 0x%X out of range", id)
	}
	f.ID = id
	pos += idDigits

	dlc, err := parseHex(line[pos : pos+1])
	if err != nil {
		return nil, fmt.Errorf("bad dlc: %w", err)
	}
	if dlc > otscan.MaxDataLength {
		return nil, fmt.Errorf("invalid dlc: %d (max %d)", dlc, otscan.MaxDataLength)
	}
	f.Length = uint8(dlc)
	pos++

	if !f.RTR {
		need := pos + int(dlc)*2
		if len(line) < need {
			return nil, fmt.Errorf("data truncated: need %d bytes, have %d", need, len(line))
		}
		for i := 0; i < int(dlc); i++ {
			b, err := parseHex(line[pos : pos+2])
			if err != nil {
				return nil, fmt.Errorf("bad data byte %d: %w", i, err)
			}
			f.Data[i] = byte(b)
			pos += 2
		}
	}

	// Optional timestamp
	switch rest := len(line) - pos; rest {
	case 0:
	case 4:
		if _, err := parseHex(line[pos:]); err != nil {
			return nil, fmt.Errorf("bad timestamp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unexpected %d trailing bytes", rest)
	}

	return f, nil
}

func parseHex(b []byte) (uint32, error) {
	var v uint32
	for _, c := range b {
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q", c)
		}
		v = v<<4 | uint32(d)
	}
	return v, nil
}
