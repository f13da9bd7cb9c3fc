// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller owns the game state, the nuke registry and the LED
// panel, and applies game events and CAN frames to them.
//
// One goroutine (Run) owns all mutable state. Everything else talks to it
// through a request channel, so no lock guards the machine or registry.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/gamestate"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/nuketrack"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// LED timings
const (
	LaunchBlink   = 10 * time.Second
	AlertDuration = 10 * time.Second
	LandDuration  = 15 * time.Second // land and naval invasions
)

// ExpireInterval is how often timed LED effects are checked
const ExpireInterval = 100 * time.Millisecond

const inboxSize = 32

// ErrStopped is returned when the controller is no longer running
var ErrStopped = errors.New("controller stopped")

// SoundPlayer plays sounds on the audio module
type SoundPlayer interface {
	PlayIndex(ctx context.Context, index uint16, interrupt, highPriority bool) (uint16, error)
}

// Publisher sends events back to the game server
type Publisher interface {
	Publish(ctx context.Context, ev *events.Event) error
}

// Options configures a controller. Player and Publisher may be nil.
type Options struct {
	Player    SoundPlayer
	Publisher Publisher

	// EventSounds plays the fallback sound for events that have one
	EventSounds bool
}

type request struct {
	event   *events.Event
	command *events.Command
	frame   *otscan.Frame
	reset   bool
	done    chan error
}

// Controller is the single owner of the device state
type Controller struct {
	machine  *gamestate.Machine
	registry *nuketrack.Registry
	panel    *indicator.Panel
	opts     Options
	log      zerolog.Logger

	inbox   chan request
	stopped chan struct{}
	runOnce sync.Once

	// owned by the Run goroutine
	phaseSince time.Time
	lastEvent  events.Type
	audio      AudioState
	processedN uint64
	failedN    uint64

	mu   sync.RWMutex
	snap Snapshot

	processed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a controller around panel.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(panel *indicator.Panel, opts Options, log zerolog.Logger) (*Controller, error) {
	if panel == nil {
		return nil, fmt.Errorf("controller needs a panel: %w", result.ErrInvalidArgument)
	}

	c := &Controller{
		registry: nuketrack.New(log),
		panel:    panel,
		opts:     opts,
		log:      log.With().Str("component", "controller").Logger(),
		inbox:    make(chan request, inboxSize),
		stopped:  make(chan struct{}),
	}
	c.machine = gamestate.New(panel, log)
	c.machine.Subscribe(c.onPhase)

	m := meter()
	var err error

	c.processed, err = m.Int64Counter(
		"controller.events.processed",
		metric.WithDescription("Game events applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	c.failed, err = m.Int64Counter(
		"controller.events.failed",
		metric.WithDescription("Game events that failed to apply"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	c.phaseSince = time.Now()
	c.lastEvent = events.Invalid
	c.publishSnapshot()
	return c, nil
}

// Subscribe registers a phase change observer. Observers run on the
// controller goroutine. Call before Run.
func (c *Controller) Subscribe(s gamestate.Subscriber) {
	c.machine.Subscribe(s)
}

// Run processes requests until ctx is cancelled. It may only be called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("controller already ran: %w", result.ErrInvalidState)
	}
	defer close(c.stopped)

	ticker := time.NewTicker(ExpireInterval)
	defer ticker.Stop()

	c.log.Info().Msg("controller running")
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("controller stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if n := c.panel.Expire(now); n > 0 {
				c.log.Debug().Int("leds", n).Msg("timed leds expired")
			}
		case req := <-c.inbox:
			err := c.handle(ctx, req)
			c.publishSnapshot()
			if req.done != nil {
				req.done <- err
			}
		}
	}
}

func (c *Controller) enqueue(ctx context.Context, req request) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- req:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) call(ctx context.Context, req request) error {
	req.done = make(chan error, 1)
	if err := c.enqueue(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.done:
		return err
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a game event without waiting for it to be applied
func (c *Controller) Submit(ctx context.Context, ev *events.Event) error {
	if ev == nil {
		return fmt.Errorf("nil event: %w", result.ErrInvalidArgument)
	}
	return c.enqueue(ctx, request{event: ev})
}

// Apply applies a game event and waits for the outcome
func (c *Controller) Apply(ctx context.Context, ev *events.Event) error {
	if ev == nil {
		return fmt.Errorf("nil event: %w", result.ErrInvalidArgument)
	}
	return c.call(ctx, request{event: ev})
}

// HandleMessage routes a decoded server message. Handshakes are ignored.
func (c *Controller) HandleMessage(ctx context.Context, msg events.Message) error {
	switch {
	case msg.Event != nil:
		return c.Submit(ctx, msg.Event)
	case msg.Command != nil:
		return c.enqueue(ctx, request{command: msg.Command})
	default:
		return nil
	}
}

// HandleFrame queues a frame received from the CAN bus
func (c *Controller) HandleFrame(ctx context.Context, f otscan.Frame) error {
	return c.enqueue(ctx, request{frame: &f})
}

// Reset returns to the lobby, forgets every nuke and turns the panel off
func (c *Controller) Reset(ctx context.Context) error {
	return c.call(ctx, request{reset: true})
}

func (c *Controller) handle(ctx context.Context, req request) error {
	switch {
	case req.reset:
		c.machine.Reset()
		c.registry.ClearAll()
		c.panel.AllOff()
		c.log.Info().Msg("controller reset")
		return nil
	case req.frame != nil:
		return c.handleFrame(req.frame)
	case req.command != nil:
		return c.handleCommand(ctx, req.command)
	case req.event != nil:
		err := c.handleEvent(ctx, req.event)
		attrs := metric.WithAttributes(attribute.String("type", req.event.Type.String()))
		c.processed.Add(ctx, 1, attrs)
		c.processedN++
		if err != nil {
			c.failed.Add(ctx, 1, attrs)
			c.failedN++
			c.log.Warn().Err(err).Stringer("type", req.event.Type).Msg("event failed")
		}
		return err
	}
	return nil
}

func (c *Controller) onPhase(from, to gamestate.Phase) {
	c.phaseSince = time.Now()
	if to == gamestate.InGame {
		c.registry.ClearAll()
	}
}
