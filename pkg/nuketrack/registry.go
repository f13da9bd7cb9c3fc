// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nuketrack keeps a fixed-capacity table of nukes in flight so the
// indicator panel can reflect how many of each kind are airborne.
//
// A Registry is not safe for concurrent use. It is owned by a single
// goroutine (the controller).
package nuketrack

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Capacity is the number of nukes that can be tracked at once
const Capacity = 32

// Type is the kind of nuke
type Type uint8

// Nuke types
const (
	Atom Type = iota
	Hydro
	MIRV
	TypeCount
)

// Direction says whether a nuke targets the player or was launched by them
type Direction uint8

// Directions
const (
	Incoming Direction = iota // drives the alert LEDs
	Outgoing                  // drives the nuke LEDs
)

// State of a tracked nuke
type State uint8

// States
const (
	InFlight State = iota
	Exploded
	Intercepted
)

// Stats is the per-state breakdown for one (type, direction)
type Stats struct {
	InFlight    int
	Exploded    int
	Intercepted int
}

type entry struct {
	unitID    uint32
	typ       Type
	direction Direction
	state     State
	active    bool
}

// Registry is a dense array of Capacity slots, scanned linearly
type Registry struct {
	slots [Capacity]entry
	log   zerolog.Logger
}

// New creates an empty registry
func New(log zerolog.Logger) *Registry {
	return &Registry{log: log.With().Str("component", "nuketrack").Logger()}
}

func (r *Registry) find(unitID uint32) *entry {
	for i := range r.slots {
		if r.slots[i].active && r.slots[i].unitID == unitID {
			return &r.slots[i]
		}
	}
	return nil
}

// RegisterLaunch starts tracking a nuke. Registering a unit id that is
// already active is a no-op.
func (r *Registry) RegisterLaunch(unitID uint32, typ Type, dir Direction) error {
	if typ >= TypeCount {
		r.log.Error().Uint8("type", uint8(typ)).Msg("invalid nuke type")
		return fmt.Errorf("nuke type %d: %w", typ, result.ErrInvalidArgument)
	}

	if r.find(unitID) != nil {
		r.log.Warn().Uint32("unit", unitID).Msg("nuke already tracked")
		return nil
	}

	for i := range r.slots {
		s := &r.slots[i]
		if s.active {
			continue
		}
		*s = entry{unitID: unitID, typ: typ, direction: dir, state: InFlight, active: true}
		r.log.Info().
			Uint32("unit", unitID).
			Stringer("type", typ).
			Stringer("direction", dir).
			Int("slot", i).
			Msg("nuke registered")
		return nil
	}

	r.log.Error().Uint32("unit", unitID).Msg("nuke tracker full")
	return fmt.Errorf("no free slot for unit %d: %w", unitID, result.ErrResourceExhausted)
}

// Resolve marks a nuke exploded or intercepted and frees its slot in the
// same step, so resolved states are never visible to ActiveCount or Stats.
func (r *Registry) Resolve(unitID uint32, exploded bool) error {
	s := r.find(unitID)
	if s == nil {
		r.log.Warn().Uint32("unit", unitID).Msg("nuke not found")
		return fmt.Errorf("unit %d: %w", unitID, result.ErrNotFound)
	}

	if exploded {
		s.state = Exploded
	} else {
		s.state = Intercepted
	}
	r.log.Info().
		Uint32("unit", unitID).
		Stringer("type", s.typ).
		Stringer("state", s.state).
		Msg("nuke resolved")
	s.active = false
	return nil
}

// Lookup returns the type and direction of an active nuke
func (r *Registry) Lookup(unitID uint32) (Type, Direction, bool) {
	s := r.find(unitID)
	if s == nil {
		return 0, 0, false
	}
	return s.typ, s.direction, true
}

// ActiveCount returns the number of in-flight nukes of a type and direction
func (r *Registry) ActiveCount(typ Type, dir Direction) int {
	n := 0
	for _, s := range r.slots {
		if s.active && s.typ == typ && s.direction == dir && s.state == InFlight {
			n++
		}
	}
	return n
}

// Stats returns the per-state counts of active entries for a type and direction
func (r *Registry) Stats(typ Type, dir Direction) Stats {
	var st Stats
	for _, s := range r.slots {
		if !s.active || s.typ != typ || s.direction != dir {
			continue
		}
		switch s.state {
		case InFlight:
			st.InFlight++
		case Exploded:
			st.Exploded++
		case Intercepted:
			st.Intercepted++
		}
	}
	return st
}

// Len returns the number of active slots
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.slots {
		if s.active {
			n++
		}
	}
	return n
}

// ClearAll deactivates every slot
func (r *Registry) ClearAll() {
	for i := range r.slots {
		r.slots[i].active = false
	}
	r.log.Info().Msg("all nukes cleared")
}

// String returns the type name
func (t Type) String() string {
	switch t {
	case Atom:
		return "ATOM"
	case Hydro:
		return "HYDRO"
	case MIRV:
		return "MIRV"
	default:
		return "UNKNOWN"
	}
}

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "INCOMING"
	case Outgoing:
		return "OUTGOING"
	default:
		return "UNKNOWN"
	}
}

// String returns the state name
func (s State) String() string {
	switch s {
	case InFlight:
		return "IN_FLIGHT"
	case Exploded:
		return "EXPLODED"
	case Intercepted:
		return "INTERCEPTED"
	default:
		return "UNKNOWN"
	}
}

// ParseType converts a game nuke type name ("atom", "Hydrogen Bomb", ...)
func ParseType(name string) (Type, bool) {
	switch name {
	case "atom", "ATOM", "Atom Bomb", "AtomBomb":
		return Atom, true
	case "hydro", "HYDRO", "Hydrogen Bomb", "HydrogenBomb":
		return Hydro, true
	case "mirv", "MIRV", "MIRV Warhead":
		return MIRV, true
	default:
		return 0, false
	}
}
