// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"time"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/gamestate"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/nuketrack"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// Snapshot is a read-only copy of the controller state
type Snapshot struct {
	Phase      gamestate.Phase
	PhaseSince time.Time
	LastEvent  events.Type

	Incoming [nuketrack.TypeCount]int
	Outgoing [nuketrack.TypeCount]int
	Tracked  int

	Panel indicator.Snapshot
	Audio AudioState

	EventsProcessed uint64
	EventsFailed    uint64
}

// publishSnapshot copies actor-owned state for Snapshot readers
func (c *Controller) publishSnapshot() {
	s := Snapshot{
		Phase:           c.machine.Phase(),
		PhaseSince:      c.phaseSince,
		LastEvent:       c.lastEvent,
		Tracked:         c.registry.Len(),
		Audio:           c.audio,
		EventsProcessed: c.processedN,
		EventsFailed:    c.failedN,
	}
	s.Audio.Modules = append([]otscan.ModuleInfo(nil), c.audio.Modules...)
	for typ := nuketrack.Atom; typ < nuketrack.TypeCount; typ++ {
		s.Incoming[typ] = c.registry.ActiveCount(typ, nuketrack.Incoming)
		s.Outgoing[typ] = c.registry.ActiveCount(typ, nuketrack.Outgoing)
	}

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Snapshot returns the state as of the last processed request. The panel
// part is read live. Safe to call from any goroutine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	s := c.snap
	c.mu.RUnlock()
	s.Panel = c.panel.Snapshot()
	return s
}
