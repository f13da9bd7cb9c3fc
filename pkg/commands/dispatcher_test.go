// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package commands

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

var defaultTable = []Entry{
	{Command: "play1", Filename: "track1.wav"},
	{Command: "play2", Filename: "track2.wav"},
}

type recorder struct {
	mu    sync.Mutex
	files []string
	err   error
}

func (r *recorder) play(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, filename)
	return r.err
}

func (r *recorder) played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func newDispatcher(t *testing.T, rec *recorder) *Dispatcher {
	t.Helper()
	d := New(zerolog.Nop())
	require.NoError(t, d.Init(defaultTable, rec.play))
	return d
}

func TestInit_InvalidArguments(t *testing.T) {
	d := New(zerolog.Nop())
	rec := &recorder{}

	assert.ErrorIs(t, d.Init(nil, rec.play), result.ErrInvalidArgument)
	assert.ErrorIs(t, d.Init([]Entry{}, rec.play), result.ErrInvalidArgument)
	assert.ErrorIs(t, d.Init(defaultTable, nil), result.ErrInvalidArgument)
}

func TestHandle_BeforeInit(t *testing.T) {
	d := New(zerolog.Nop())
	assert.ErrorIs(t, d.Handle("play1"), result.ErrInvalidState)
	assert.ErrorIs(t, d.Run(context.Background(), strings.NewReader("")), result.ErrInvalidState)
}

func TestHandle_Match(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)

	require.NoError(t, d.Handle("play1"))
	assert.Equal(t, []string{"track1.wav"}, rec.played())

	err := d.Handle("play3")
	assert.ErrorIs(t, err, result.ErrNotFound)
	assert.Equal(t, []string{"track1.wav"}, rec.played(), "callback must not run on a miss")
}

func TestHandle_CaseSensitive(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)

	assert.ErrorIs(t, d.Handle("PLAY1"), result.ErrNotFound)
	assert.ErrorIs(t, d.Handle("play1 "), result.ErrNotFound)
	assert.Empty(t, rec.played())
}

func TestHandle_FirstMatchWins(t *testing.T) {
	rec := &recorder{}
	d := New(zerolog.Nop())
	require.NoError(t, d.Init([]Entry{
		{Command: "beep", Filename: "first.wav"},
		{Command: "beep", Filename: "second.wav"},
	}, rec.play))

	require.NoError(t, d.Handle("beep"))
	assert.Equal(t, []string{"first.wav"}, rec.played())
}

func TestHandle_CallbackErrorUnchanged(t *testing.T) {
	sdErr := errors.New("sd card removed")
	rec := &recorder{err: sdErr}
	d := newDispatcher(t, rec)

	assert.Same(t, sdErr, d.Handle("play2"))
}

func TestInit_CopiesTable(t *testing.T) {
	rec := &recorder{}
	table := []Entry{{Command: "a", Filename: "a.wav"}}
	d := New(zerolog.Nop())
	require.NoError(t, d.Init(table, rec.play))

	table[0].Filename = "changed.wav"
	require.NoError(t, d.Handle("a"))
	assert.Equal(t, []string{"a.wav"}, rec.played())
}

func TestRun_ProcessesLines(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)
	d.PollInterval = 5 * time.Millisecond

	input := "play1\r\n\n\nbogus\nplay2\n" + strings.Repeat("x", MaxLineLength+1) + "\nplay1"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, strings.NewReader(input)) }()

	// The last line has no newline and stays buffered
	require.Eventually(t, func() bool { return len(rec.played()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, []string{"track1.wav", "track2.wav"}, rec.played())
}

func TestRun_WaitsForInput(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)
	d.PollInterval = 5 * time.Millisecond

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, pr)

	_, err := pw.Write([]byte("play2\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.played()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "track2.wav", rec.played()[0])

	pw.Close()
}

func TestRun_CancelWhileReadBlocked(t *testing.T) {
	d := newDispatcher(t, &recorder{})

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, pr) }()

	// Nothing is ever written, so the reader stays blocked in Read
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return while its reader was blocked")
	}
}

func TestRun_DropsUnterminatedLongLine(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)
	d.PollInterval = 5 * time.Millisecond

	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, pr)

	go func() {
		pw.Write([]byte(strings.Repeat("play1", 2000)))
		pw.Write([]byte("\nplay2\n"))
	}()

	require.Eventually(t, func() bool { return len(rec.played()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"track2.wav"}, rec.played())
}
