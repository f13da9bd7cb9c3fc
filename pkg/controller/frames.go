// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// AudioState is what the controller has heard from audio modules
type AudioState struct {
	Modules     []otscan.ModuleInfo
	Status      otscan.SoundStatus
	HasStatus   bool
	LastAck     otscan.SoundAck
	Acks        uint64
	AckFailures uint64
}

func (c *Controller) handleFrame(f *otscan.Frame) error {
	switch f.ID {
	case otscan.IDSoundAck:
		ack, err := otscan.ParseSoundAck(f)
		if err != nil {
			return err
		}
		c.audio.LastAck = ack
		c.audio.Acks++
		if !ack.OK {
			c.audio.AckFailures++
			c.log.Warn().
				Uint16("index", ack.SoundIndex).
				Uint16("request_id", ack.RequestID).
				Stringer("error", ack.Error).
				Msg("audio module rejected command")
		}

	case otscan.IDSoundStatus:
		st, err := otscan.ParseSoundStatus(f)
		if err != nil {
			return err
		}
		c.audio.Status = st
		c.audio.HasStatus = true
		c.log.Debug().
			Bool("playing", st.Playing()).
			Uint16("sound", st.CurrentSound).
			Stringer("error", st.Error).
			Msg("audio status")

	case otscan.IDModuleAnnounce:
		info, err := otscan.ParseModuleAnnounce(f)
		if err != nil {
			return err
		}
		for i := range c.audio.Modules {
			if c.audio.Modules[i].NodeID == info.NodeID {
				c.audio.Modules[i] = info
				return nil
			}
		}
		c.audio.Modules = append(c.audio.Modules, info)
		c.log.Info().Stringer("module", info).Msg("module discovered")
	}
	return nil
}
