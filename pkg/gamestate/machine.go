// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gamestate tracks the game lifecycle phase.
//
// A Machine is not safe for concurrent use. It is owned by a single
// goroutine (the controller), which serializes every update.
package gamestate

import (
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
)

// Phase is the game lifecycle stage
type Phase uint8

// Phases
const (
	Lobby Phase = iota
	Spawning
	InGame
	Won
	Lost
	Ended
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case Lobby:
		return "LOBBY"
	case Spawning:
		return "SPAWNING"
	case InGame:
		return "IN_GAME"
	case Won:
		return "WON"
	case Lost:
		return "LOST"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Subscriber is notified once per committed phase change
type Subscriber func(from, to Phase)

// Machine holds the current phase and its subscribers
type Machine struct {
	phase       Phase
	subscribers []Subscriber
	indicators  indicator.Setter
	log         zerolog.Logger
}

// New creates a machine in Lobby. indicators may be nil.
func New(indicators indicator.Setter, log zerolog.Logger) *Machine {
	m := &Machine{
		phase:      Lobby,
		indicators: indicators,
		log:        log.With().Str("component", "gamestate").Logger(),
	}
	m.log.Info().Stringer("phase", m.phase).Msg("game state initialized")
	return m
}

// Subscribe appends a subscriber. Subscribers run in registration order.
func (m *Machine) Subscribe(s Subscriber) {
	if s != nil {
		m.subscribers = append(m.subscribers, s)
	}
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	return m.phase
}

// IsInGame reports whether a game is running (spawning or in game)
func (m *Machine) IsInGame() bool {
	return m.phase == InGame || m.phase == Spawning
}

// Update applies a game event. Events other than GameStart, GameEnd, Win
// and Lose are ignored. The returned error collects indicator failures
// from GameStart; the transition is committed regardless.
func (m *Machine) Update(ev events.Type) error {
	var next Phase
	var errs *multierror.Error

	switch ev {
	case events.GameStart:
		next = InGame
		errs = m.clearIndicators()
	case events.GameEnd:
		next = Ended
	case events.Win:
		next = Won
	case events.Lose:
		next = Lost
	default:
		return nil
	}

	m.commit(next)
	return errs.ErrorOrNil()
}

func (m *Machine) clearIndicators() *multierror.Error {
	if m.indicators == nil {
		return nil
	}
	var errs *multierror.Error
	for i := 0; i < indicator.NukeCount; i++ {
		if err := m.indicators.SetIndicator(indicator.Nuke, i, indicator.Off); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for i := 0; i < indicator.AlertCount; i++ {
		if err := m.indicators.SetIndicator(indicator.Alert, i, indicator.Off); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		m.log.Warn().Err(errs).Msg("failed to clear indicators")
	}
	return errs
}

// Reset forces the phase back to Lobby
func (m *Machine) Reset() {
	m.log.Info().Msg("game state reset to LOBBY")
	m.commit(Lobby)
}

func (m *Machine) commit(next Phase) {
	old := m.phase
	if next == old {
		return
	}
	m.phase = next
	m.log.Info().Stringer("from", old).Stringer("to", next).Msg("game phase changed")
	for _, s := range m.subscribers {
		s(old, next)
	}
}
