// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package indicator models the device's LED panel: three nuke button LEDs
// and six alert LEDs.
package indicator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Kind selects an LED bank
type Kind uint8

// LED banks
const (
	Nuke  Kind = iota // 0=atom, 1=hydro, 2=mirv
	Alert             // 0=warning, 1=atom, 2=hydro, 3=mirv, 4=land, 5=naval
)

// Bank sizes
const (
	NukeCount  = 3
	AlertCount = 6
)

// Alert LED indices
const (
	AlertWarning = 0
	AlertAtom    = 1
	AlertHydro   = 2
	AlertMIRV    = 3
	AlertLand    = 4
	AlertNaval   = 5
)

// Effect is what an LED is doing
type Effect uint8

// Effects
const (
	Off Effect = iota
	On
	Blink
)

// Setter is anything that can drive an LED
type Setter interface {
	SetIndicator(kind Kind, index int, effect Effect) error
}

// Command is one LED change. A non-zero Duration turns the LED off once
// it elapses.
type Command struct {
	Kind     Kind
	Index    int
	Effect   Effect
	Duration time.Duration
}

type ledState struct {
	effect Effect
	until  time.Time // zero = no expiry
}

// Snapshot is a copy of the panel state
type Snapshot struct {
	Nuke  [NukeCount]Effect
	Alert [AlertCount]Effect
}

// Panel tracks LED effects and their expiry. Safe for concurrent use.
type Panel struct {
	mu    sync.Mutex
	nuke  [NukeCount]ledState
	alert [AlertCount]ledState
	now   func() time.Time
	log   zerolog.Logger
}

// NewPanel creates a panel with every LED off
func NewPanel(log zerolog.Logger) *Panel {
	return &Panel{
		now: time.Now,
		log: log.With().Str("component", "indicator").Logger(),
	}
}

func (p *Panel) slot(kind Kind, index int) (*ledState, error) {
	switch kind {
	case Nuke:
		if index >= 0 && index < NukeCount {
			return &p.nuke[index], nil
		}
	case Alert:
		if index >= 0 && index < AlertCount {
			return &p.alert[index], nil
		}
	default:
		return nil, fmt.Errorf("led kind %d: %w", kind, result.ErrInvalidArgument)
	}
	return nil, fmt.Errorf("%s led %d: %w", kind, index, result.ErrInvalidArgument)
}

// SetIndicator sets an LED effect with no expiry
func (p *Panel) SetIndicator(kind Kind, index int, effect Effect) error {
	return p.set(Command{Kind: kind, Index: index, Effect: effect})
}

// SetTimed sets an LED effect that reverts to Off after d
func (p *Panel) SetTimed(kind Kind, index int, effect Effect, d time.Duration) error {
	return p.set(Command{Kind: kind, Index: index, Effect: effect, Duration: d})
}

func (p *Panel) set(c Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(c.Kind, c.Index)
	if err != nil {
		p.log.Warn().Err(err).Msg("invalid led command")
		return err
	}
	s.effect = c.Effect
	s.until = time.Time{}
	if c.Duration > 0 && c.Effect != Off {
		s.until = p.now().Add(c.Duration)
	}
	p.log.Debug().
		Stringer("kind", c.Kind).
		Int("index", c.Index).
		Stringer("effect", c.Effect).
		Dur("duration", c.Duration).
		Msg("led")
	return nil
}

// Apply runs every command and returns all failures together
func (p *Panel) Apply(cmds ...Command) error {
	var errs *multierror.Error
	for _, c := range cmds {
		if err := p.set(c); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// AllOff turns every LED off
func (p *Panel) AllOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nuke = [NukeCount]ledState{}
	p.alert = [AlertCount]ledState{}
}

// Expire turns off timed effects whose deadline has passed at now and
// returns how many changed.
func (p *Panel) Expire(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	expire := func(s *ledState) {
		if !s.until.IsZero() && !now.Before(s.until) {
			*s = ledState{}
			n++
		}
	}
	for i := range p.nuke {
		expire(&p.nuke[i])
	}
	for i := range p.alert {
		expire(&p.alert[i])
	}
	return n
}

// Effect returns the current effect of one LED
func (p *Panel) Effect(kind Kind, index int) Effect {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(kind, index)
	if err != nil {
		return Off
	}
	return s.effect
}

// Snapshot copies the current state
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var snap Snapshot
	for i, s := range p.nuke {
		snap.Nuke[i] = s.effect
	}
	for i, s := range p.alert {
		snap.Alert[i] = s.effect
	}
	return snap
}

// String renders the snapshot as two rows of symbols
func (s Snapshot) String() string {
	var b strings.Builder
	b.WriteString("nuke ")
	for _, e := range s.Nuke {
		b.WriteString(e.symbol())
	}
	b.WriteString(" alert ")
	for _, e := range s.Alert {
		b.WriteString(e.symbol())
	}
	return b.String()
}

func (e Effect) symbol() string {
	switch e {
	case On:
		return "●"
	case Blink:
		return "◐"
	default:
		return "○"
	}
}

// String returns the effect name
func (e Effect) String() string {
	switch e {
	case Off:
		return "OFF"
	case On:
		return "ON"
	case Blink:
		return "BLINK"
	default:
		return "UNKNOWN"
	}
}

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case Nuke:
		return "NUKE"
	case Alert:
		return "ALERT"
	default:
		return "UNKNOWN"
	}
}
