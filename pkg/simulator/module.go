// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator emulates an audio module on a CAN bus, for bench
// testing the controller without hardware.
package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/sound"
)

// DefaultPlayDuration is how long a simulated sound plays
const DefaultPlayDuration = 3 * time.Second

// MixerSources is how many sounds can play at once
const MixerSources = 4

type source struct {
	index uint16
	until time.Time
}

// Module is a simulated audio module
type Module struct {
	// StatusInterval is the SOUND_STATUS period. Zero disables it.
	StatusInterval time.Duration
	// PlayDuration is how long a started sound reports as playing
	PlayDuration time.Duration

	bus     canbus.Bus
	catalog *sound.Catalog
	info    otscan.ModuleInfo
	log     zerolog.Logger

	mu        sync.Mutex
	now       func() time.Time
	started   time.Time
	sources   []source // oldest first
	lastError otscan.AudioError
}

// New creates a module answering on bus with the given node id
func New(bus canbus.Bus, catalog *sound.Catalog, nodeID uint8, log zerolog.Logger) *Module {
	m := &Module{
		StatusInterval: otscan.StatusIntervalMs * time.Millisecond,
		PlayDuration:   DefaultPlayDuration,
		bus:            bus,
		catalog:        catalog,
		info: otscan.ModuleInfo{
			Type:         otscan.ModuleTypeAudio,
			FirmwareMaj:  1,
			FirmwareMin:  0,
			Capabilities: otscan.ModuleCapStatus,
			BlockBase:    otscan.AudioBlockBase,
			NodeID:       nodeID,
		},
		log: log.With().Str("component", "simulator").Uint8("node", nodeID).Logger(),
		now: time.Now,
	}
	m.started = m.now()
	return m
}

// Info returns the module's announce payload
func (m *Module) Info() otscan.ModuleInfo {
	return m.info
}

// Run answers frames and sends periodic status until ctx is cancelled
func (m *Module) Run(ctx context.Context) error {
	frames := make(chan otscan.Frame)
	recvErr := make(chan error, 1)
	go func() {
		for {
			f, err := m.bus.Receive(ctx)
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				recvErr <- ctx.Err()
				return
			}
		}
	}()

	var tick <-chan time.Time
	if m.StatusInterval > 0 {
		ticker := time.NewTicker(m.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.log.Info().Stringer("module", m.info).Msg("audio module simulator running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-recvErr:
			return err
		case <-tick:
			if err := m.bus.Send(ctx, m.Status()); err != nil {
				m.log.Warn().Err(err).Msg("failed to send status")
			}
		case f := <-frames:
			reply, ok := m.HandleFrame(&f)
			if !ok {
				continue
			}
			if err := m.bus.Send(ctx, reply); err != nil {
				m.log.Warn().Err(err).Msg("failed to send reply")
			}
		}
	}
}

// HandleFrame applies a received frame and returns the reply to send,
// if any. Malformed frames are ignored.
func (m *Module) HandleFrame(f *otscan.Frame) (otscan.Frame, bool) {
	switch f.ID {
	case otscan.IDModuleQuery:
		typ, err := otscan.ParseModuleQuery(f)
		if err != nil {
			return otscan.Frame{}, false
		}
		if typ != otscan.QueryEnumerateAll && typ != m.info.Type {
			return otscan.Frame{}, false
		}
		m.log.Debug().Msg("announcing")
		return otscan.BuildModuleAnnounce(m.info), true

	case otscan.IDPlaySound:
		cmd, err := otscan.ParsePlaySound(f)
		if err != nil {
			m.log.Warn().Err(err).Msg("bad PLAY_SOUND")
			return otscan.Frame{}, false
		}
		return otscan.BuildSoundAck(m.play(cmd)), true

	case otscan.IDStopSound:
		cmd, err := otscan.ParseStopSound(f)
		if err != nil {
			m.log.Warn().Err(err).Msg("bad STOP_SOUND")
			return otscan.Frame{}, false
		}
		return otscan.BuildSoundAck(m.stop(cmd)), true
	}
	return otscan.Frame{}, false
}

func (m *Module) play(cmd otscan.PlaySound) otscan.SoundAck {
	m.mu.Lock()
	defer m.mu.Unlock()

	ack := otscan.SoundAck{SoundIndex: cmd.SoundIndex, RequestID: cmd.RequestID}
	if !m.catalog.Contains(cmd.SoundIndex) {
		ack.Error = otscan.AudioErrInvalidIndex
		m.lastError = ack.Error
		m.log.Warn().Uint16("index", cmd.SoundIndex).Msg("unknown sound index")
		return ack
	}

	m.pruneLocked()
	if len(m.sources) >= MixerSources {
		if cmd.Flags&otscan.FlagInterrupt == 0 {
			ack.Error = otscan.AudioErrMixerFull
			m.log.Warn().Uint16("index", cmd.SoundIndex).Msg("mixer full")
			return ack
		}
		m.sources = m.sources[1:]
	}

	m.sources = append(m.sources, source{index: cmd.SoundIndex, until: m.now().Add(m.PlayDuration)})
	m.lastError = otscan.AudioErrOK
	ack.OK = true
	s, _ := m.catalog.Get(cmd.SoundIndex)
	m.log.Info().Uint16("index", cmd.SoundIndex).Str("file", s.File).Msg("playing")
	return ack
}

func (m *Module) stop(cmd otscan.StopSound) otscan.SoundAck {
	m.mu.Lock()
	defer m.mu.Unlock()

	ack := otscan.SoundAck{OK: true, SoundIndex: cmd.SoundIndex, RequestID: cmd.RequestID}
	if cmd.Flags&otscan.FlagStopAll != 0 {
		m.sources = nil
		m.log.Info().Msg("stopped all")
		return ack
	}
	if cmd.SoundIndex == otscan.SoundIndexAny {
		m.pruneLocked()
		if n := len(m.sources); n > 0 {
			m.log.Info().Uint16("index", m.sources[n-1].index).Msg("stopped current")
			m.sources = m.sources[:n-1]
		}
		return ack
	}

	kept := m.sources[:0]
	for _, src := range m.sources {
		if src.index != cmd.SoundIndex {
			kept = append(kept, src)
		}
	}
	m.sources = kept
	m.log.Info().Uint16("index", cmd.SoundIndex).Msg("stopped")
	return ack
}

// pruneLocked drops sources that finished playing
func (m *Module) pruneLocked() {
	now := m.now()
	kept := m.sources[:0]
	for _, src := range m.sources {
		if now.Before(src.until) {
			kept = append(kept, src)
		}
	}
	m.sources = kept
}

// Status builds the current SOUND_STATUS frame
func (m *Module) Status() otscan.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := otscan.SoundStatus{
		State:        otscan.StatusSDMounted,
		CurrentSound: otscan.SoundIndexAny,
		Error:        m.lastError,
		Volume:       otscan.VolumeUsePot,
		UptimeSec:    uint16(m.now().Sub(m.started) / time.Second),
	}
	if m.lastError == otscan.AudioErrOK {
		st.State |= otscan.StatusReady
	} else {
		st.State |= otscan.StatusError
	}
	m.pruneLocked()
	if n := len(m.sources); n > 0 {
		st.State |= otscan.StatusPlaying
		st.CurrentSound = m.sources[n-1].index
	}
	return otscan.BuildSoundStatus(st)
}
