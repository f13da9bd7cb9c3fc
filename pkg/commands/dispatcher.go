// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package commands maps console command lines to sound playback through a
// static lookup table.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// DefaultPollInterval is how long Run waits when no input is available
const DefaultPollInterval = 100 * time.Millisecond

// MaxLineLength is the longest accepted command line
const MaxLineLength = 127

// Entry maps one console command to a sound file
type Entry struct {
	Command  string `mapstructure:"command"`
	Filename string `mapstructure:"file"`
}

// PlayFunc plays a sound file by name
type PlayFunc func(filename string) error

// Dispatcher matches commands against its table and invokes the play callback
type Dispatcher struct {
	PollInterval time.Duration

	mu    sync.Mutex
	table []Entry
	play  PlayFunc
	log   zerolog.Logger
}

// New creates an uninitialized dispatcher
func New(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		PollInterval: DefaultPollInterval,
		log:          log.With().Str("component", "commands").Logger(),
	}
}

// Init installs the command table and play callback
func (d *Dispatcher) Init(table []Entry, play PlayFunc) error {
	if len(table) == 0 || play == nil {
		d.log.Error().Int("entries", len(table)).Bool("callback", play != nil).Msg("invalid parameters")
		return fmt.Errorf("command table and play callback required: %w", result.ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.table = append([]Entry(nil), table...)
	d.play = play
	d.log.Info().Int("entries", len(table)).Msg("initialized")
	return nil
}

func (d *Dispatcher) config() ([]Entry, PlayFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table, d.play
}

// Handle runs one command. The first exact, case-sensitive match wins and
// the callback's error is returned unchanged.
func (d *Dispatcher) Handle(cmd string) error {
	table, play := d.config()
	if play == nil {
		d.log.Error().Msg("not initialized")
		return fmt.Errorf("dispatcher: %w", result.ErrInvalidState)
	}

	d.log.Info().Str("command", cmd).Msg("command")

	for _, e := range table {
		if e.Command != cmd {
			continue
		}
		d.log.Info().Str("file", e.Filename).Msg("play")
		err := play(e.Filename)
		if err != nil {
			d.log.Error().Err(err).Str("file", e.Filename).Msg("play failed")
		}
		return err
	}

	d.log.Warn().Str("command", cmd).Msg("unknown command")
	return fmt.Errorf("command %q: %w", cmd, result.ErrNotFound)
}

// Run reads newline-delimited commands from r and handles them one at a
// time until ctx is cancelled. When r has no input Run sleeps PollInterval
// and tries again.
func (d *Dispatcher) Run(ctx context.Context, r io.Reader) error {
	if _, play := d.config(); play == nil {
		d.log.Error().Msg("not initialized")
		return fmt.Errorf("dispatcher: %w", result.ErrInvalidState)
	}

	d.log.Info().Msg("command loop started")

	// A reader blocked in Read outlives Run until that Read returns
	lines := make(chan string)
	go d.readLines(ctx, r, lines)

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("command loop stopped")
			return ctx.Err()
		case line := <-lines:
			// Failures are already logged by Handle
			_ = d.Handle(line)
		}
	}
}

// readLines sends complete, non-empty lines of at most MaxLineLength
// characters to out. Longer lines are discarded without being buffered.
func (d *Dispatcher) readLines(ctx context.Context, r io.Reader, out chan<- string) {
	br := bufio.NewReaderSize(r, 256)
	var partial strings.Builder
	overflow := false

	for ctx.Err() == nil {
		chunk, err := br.ReadSlice('\n')
		if !overflow {
			partial.Write(chunk)
			// Room for the line plus "\r\n"
			if partial.Len() > MaxLineLength+2 {
				overflow = true
				partial.Reset()
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.log.Debug().Err(err).Msg("read error")
			}
			if sleepCtx(ctx, d.PollInterval) != nil {
				return
			}
			continue
		}

		line := strings.TrimRight(partial.String(), "\r\n")
		partial.Reset()
		if overflow {
			overflow = false
			d.log.Warn().Msg("command line too long")
			continue
		}
		if line == "" {
			continue
		}
		if len(line) > MaxLineLength {
			d.log.Warn().Int("length", len(line)).Msg("command line too long")
			continue
		}

		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
