// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/slcan"
)

// rxQueueSize bounds frames buffered between the reader and Receive
const rxQueueSize = 64

// StreamBus speaks SLCAN over any byte stream
type StreamBus struct {
	rw    io.ReadWriteCloser
	log   zerolog.Logger
	rx    chan otscan.Frame
	done  chan struct{}
	wmu   sync.Mutex
	once  sync.Once
	stats *otscan.Statistics
	smu   sync.Mutex
}

// NewStreamBus wraps rw and starts the reader goroutine. If bitrate is
// non-zero the adapter channel is closed, configured and reopened first.
func NewStreamBus(rw io.ReadWriteCloser, bitrate int, log zerolog.Logger) (*StreamBus, error) {
	b := &StreamBus{
		rw:    rw,
		log:   log.With().Str("component", "canbus").Logger(),
		rx:    make(chan otscan.Frame, rxQueueSize),
		done:  make(chan struct{}),
		stats: otscan.NewStatistics(),
	}

	if bitrate != 0 {
		setup, err := slcan.BitrateCommand(bitrate)
		if err != nil {
			return nil, err
		}
		for _, c := range [][]byte{slcan.CloseCommand, setup, slcan.OpenCommand} {
			if _, err := rw.Write(c); err != nil {
				return nil, fmt.Errorf("adapter setup failed: %w", err)
			}
		}
	}

	go b.readLoop()
	return b, nil
}

func (b *StreamBus) readLoop() {
	decoder := slcan.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := b.rw.Read(buf)
		for i := 0; i < n; i++ {
			f, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				b.log.Warn().Err(decodeErr).Msg("slcan decode error")
				b.record(nil, decodeErr)
				continue
			}
			if f == nil {
				continue
			}
			b.record(f, nil)
			select {
			case b.rx <- *f:
			case <-b.done:
				return
			default:
				b.log.Warn().Uint32("id", f.ID).Msg("rx queue full, dropping frame")
			}
		}

		if err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				b.log.Info().Msg("stream closed")
				b.Close()
				return
			}
			b.log.Debug().Err(err).Msg("read error")
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (b *StreamBus) record(f *otscan.Frame, decodeErr error) {
	b.smu.Lock()
	defer b.smu.Unlock()
	if f == nil {
		b.stats.Update(nil, decodeErr, nil)
		return
	}
	b.stats.Update(f, nil, otscan.ValidateFrame(f))
}

// Send writes one frame as an SLCAN line
func (b *StreamBus) Send(ctx context.Context, f otscan.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	if _, err := b.rw.Write(slcan.Encode(&f)); err != nil {
		return fmt.Errorf("write frame 0x%03X: %w", f.ID, err)
	}
	return nil
}

// Receive blocks until a frame arrives, ctx ends or the bus closes
func (b *StreamBus) Receive(ctx context.Context) (otscan.Frame, error) {
	select {
	case f := <-b.rx:
		return f, nil
	case <-ctx.Done():
		return otscan.Frame{}, ctx.Err()
	case <-b.done:
		// Drain anything decoded before close
		select {
		case f := <-b.rx:
			return f, nil
		default:
			return otscan.Frame{}, ErrClosed
		}
	}
}

// Statistics returns a snapshot of receive statistics
func (b *StreamBus) Statistics() otscan.Statistics {
	b.smu.Lock()
	defer b.smu.Unlock()
	return *b.stats
}

// Close stops the reader and closes the underlying stream
func (b *StreamBus) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		b.wmu.Lock()
		_, _ = b.rw.Write(slcan.CloseCommand)
		b.wmu.Unlock()
		err = b.rw.Close()
	})
	return err
}
