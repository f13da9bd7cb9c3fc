// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"sync"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// Loopback is one end of an in-memory bus pair
type Loopback struct {
	tx   chan<- otscan.Frame
	rx   <-chan otscan.Frame
	done chan struct{}
	peer *Loopback
	once sync.Once
}

// NewLoopback returns two connected ends: frames sent on one are
// received on the other.
func NewLoopback() (*Loopback, *Loopback) {
	ab := make(chan otscan.Frame, rxQueueSize)
	ba := make(chan otscan.Frame, rxQueueSize)
	a := &Loopback{tx: ab, rx: ba, done: make(chan struct{})}
	b := &Loopback{tx: ba, rx: ab, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Send delivers f to the peer end
func (l *Loopback) Send(ctx context.Context, f otscan.Frame) error {
	select {
	case <-l.done:
		return ErrClosed
	case <-l.peer.done:
		return ErrClosed
	default:
	}
	select {
	case l.tx <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	case <-l.peer.done:
		return ErrClosed
	}
}

// Receive returns the next frame sent by the peer end
func (l *Loopback) Receive(ctx context.Context) (otscan.Frame, error) {
	select {
	case f := <-l.rx:
		return f, nil
	case <-ctx.Done():
		return otscan.Frame{}, ctx.Err()
	case <-l.done:
		return otscan.Frame{}, ErrClosed
	}
}

// Close shuts this end down
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}
