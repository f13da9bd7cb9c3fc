// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"fmt"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Frame is a classic CAN frame: identifier, up to 8 payload bytes and the
// extended-id / remote-request flags. Bytes past Length are always zero.
type Frame struct {
	ID       uint32
	Length   uint8
	Extended bool
	RTR      bool
	Data     [MaxDataLength]byte
}

// NewFrame creates a standard data frame carrying payload
func NewFrame(id uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxDataLength {
		return Frame{}, fmt.Errorf("payload too long: %d bytes (max %d): %w",
			len(payload), MaxDataLength, result.ErrInvalidArgument)
	}
	if id > MaxStandardID {
		return Frame{}, fmt.Errorf("standard id 0x%X out of range: %w", id, result.ErrInvalidArgument)
	}
	f := Frame{ID: id, Length: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f, nil
}

// NewExtendedFrame creates a data frame with a 29-bit identifier
func NewExtendedFrame(id uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxDataLength {
		return Frame{}, fmt.Errorf("payload too long: %d bytes (max %d): %w",
			len(payload), MaxDataLength, result.ErrInvalidArgument)
	}
	if id > MaxExtendedID {
		return Frame{}, fmt.Errorf("extended id 0x%X out of range: %w", id, result.ErrInvalidArgument)
	}
	f := Frame{ID: id, Length: uint8(len(payload)), Extended: true}
	copy(f.Data[:], payload)
	return f, nil
}

// Payload returns the used part of the data field
func (f *Frame) Payload() []byte {
	n := f.Length
	if n > MaxDataLength {
		n = MaxDataLength
	}
	return f.Data[:n]
}

// Validate checks the frame invariants: length ≤ 8, identifier in range
// for its format, and zero padding past Length.
func (f *Frame) Validate() error {
	if f.Length > MaxDataLength {
		return fmt.Errorf("length %d exceeds %d: %w", f.Length, MaxDataLength, result.ErrInvalidArgument)
	}
	limit := uint32(MaxStandardID)
	if f.Extended {
		limit = MaxExtendedID
	}
	if f.ID > limit {
		return fmt.Errorf("id 0x%X out of range: %w", f.ID, result.ErrInvalidArgument)
	}
	for i := int(f.Length); i < MaxDataLength; i++ {
		if f.Data[i] != 0 {
			return fmt.Errorf("padding byte %d is 0x%02X: %w", i, f.Data[i], result.ErrInvalidArgument)
		}
	}
	return nil
}
