// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import "sync/atomic"

// RequestCounter hands out request ids for PLAY_SOUND/STOP_SOUND so acks
// can be matched to commands. Ids wrap at 16 bits. Safe for concurrent use.
type RequestCounter struct {
	next atomic.Uint32
}

// Next returns the next request id
func (c *RequestCounter) Next() uint16 {
	return uint16(c.next.Add(1) - 1)
}
