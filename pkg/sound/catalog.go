// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sound drives the audio module over the CAN bus.
package sound

import (
	"fmt"
	"sort"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Sound is one entry of the audio module's SD card registry
type Sound struct {
	Index       uint16 `mapstructure:"index"`
	File        string `mapstructure:"file"`
	Description string `mapstructure:"description"`
}

// DefaultSounds is the registry shipped on the audio module's SD card
func DefaultSounds() []Sound {
	return []Sound{
		{1, "track1.wav", "Track 1"},
		{2, "track2.wav", "Track 2"},
		{100, "hello.wav", "Hello"},
		{101, "ping.wav", "Ping"},
		{200, "game_start.wav", "Game start"},
		{201, "game_player_death.wav", "Player death"},
		{202, "game_victory.wav", "Victory"},
		{203, "game_defeat.wav", "Defeat"},
	}
}

// Catalog maps sound indices to filenames and back
type Catalog struct {
	byIndex map[uint16]Sound
	byFile  map[string]uint16
}

// NewCatalog builds a catalog. Duplicate indices or filenames, empty
// filenames and the reserved index 0xFFFF are rejected.
func NewCatalog(sounds []Sound) (*Catalog, error) {
	c := &Catalog{
		byIndex: make(map[uint16]Sound, len(sounds)),
		byFile:  make(map[string]uint16, len(sounds)),
	}
	for _, s := range sounds {
		if s.File == "" {
			return nil, fmt.Errorf("sound %d has no file: %w", s.Index, result.ErrInvalidArgument)
		}
		if s.Index == 0xFFFF {
			return nil, fmt.Errorf("sound %s uses reserved index 0xFFFF: %w", s.File, result.ErrInvalidArgument)
		}
		if _, dup := c.byIndex[s.Index]; dup {
			return nil, fmt.Errorf("duplicate sound index %d: %w", s.Index, result.ErrInvalidArgument)
		}
		if _, dup := c.byFile[s.File]; dup {
			return nil, fmt.Errorf("duplicate sound file %s: %w", s.File, result.ErrInvalidArgument)
		}
		c.byIndex[s.Index] = s
		c.byFile[s.File] = s.Index
	}
	return c, nil
}

// IndexOf returns the index registered for a filename
func (c *Catalog) IndexOf(file string) (uint16, bool) {
	idx, ok := c.byFile[file]
	return idx, ok
}

// Get returns the sound registered at an index
func (c *Catalog) Get(index uint16) (Sound, bool) {
	s, ok := c.byIndex[index]
	return s, ok
}

// Contains reports whether index is registered
func (c *Catalog) Contains(index uint16) bool {
	_, ok := c.byIndex[index]
	return ok
}

// Sounds returns all entries ordered by index
func (c *Catalog) Sounds() []Sound {
	out := make([]Sound, 0, len(c.byIndex))
	for _, s := range c.byIndex {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.byIndex)
}
