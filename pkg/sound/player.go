// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sound

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// SendTimeout bounds a single frame transmission for calls without a context
const SendTimeout = time.Second

// Player sends PLAY_SOUND and STOP_SOUND frames to the audio module.
// Safe for concurrent use.
type Player struct {
	bus     canbus.Bus
	catalog *Catalog
	volume  uint8
	reqs    otscan.RequestCounter
	log     zerolog.Logger
	sent    metric.Int64Counter
}

// NewPlayer creates a player. volume is sent with every play command;
// otscan.VolumeUsePot leaves it to the module's potentiometer.
// Uses the global OTel meter (no-op if not configured).
func NewPlayer(bus canbus.Bus, catalog *Catalog, volume uint8, log zerolog.Logger) (*Player, error) {
	if bus == nil || catalog == nil {
		return nil, fmt.Errorf("player needs a bus and a catalog: %w", result.ErrInvalidArgument)
	}
	if volume > 100 && volume != otscan.VolumeUsePot {
		return nil, fmt.Errorf("volume %d out of range: %w", volume, result.ErrInvalidArgument)
	}

	sent, err := meter().Int64Counter(
		"sound.frames.sent",
		metric.WithDescription("Audio command frames sent on the bus"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}

	return &Player{
		bus:     bus,
		catalog: catalog,
		volume:  volume,
		log:     log.With().Str("component", "sound").Logger(),
		sent:    sent,
	}, nil
}

// Catalog returns the player's sound catalog
func (p *Player) Catalog() *Catalog {
	return p.catalog
}

// Play looks a filename up in the catalog and plays it. It matches the
// console dispatcher's callback signature.
func (p *Player) Play(file string) error {
	idx, ok := p.catalog.IndexOf(file)
	if !ok {
		return fmt.Errorf("sound file %s: %w", file, result.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
	defer cancel()
	_, err := p.PlayIndex(ctx, idx, false, false)
	return err
}

// PlayIndex sends PLAY_SOUND for index and returns the request id used
func (p *Player) PlayIndex(ctx context.Context, index uint16, interrupt, highPriority bool) (uint16, error) {
	var flags uint8
	if interrupt {
		flags |= otscan.FlagInterrupt
	}
	if highPriority {
		flags |= otscan.FlagHighPriority
	}

	req := p.reqs.Next()
	f := otscan.BuildPlaySound(index, flags, p.volume, req)
	if err := p.send(ctx, f, "play"); err != nil {
		return req, fmt.Errorf("play sound %d: %w", index, err)
	}
	p.log.Debug().
		Uint16("index", index).
		Uint16("request_id", req).
		Bool("interrupt", interrupt).
		Bool("high_priority", highPriority).
		Msg("play sound")
	return req, nil
}

// Stop sends STOP_SOUND. With all set every playing sound stops and index
// is ignored.
func (p *Player) Stop(ctx context.Context, index uint16, all bool) (uint16, error) {
	var flags uint8
	if all {
		flags = otscan.FlagStopAll
		index = otscan.SoundIndexAny
	}

	req := p.reqs.Next()
	f := otscan.BuildStopSound(index, flags, req)
	if err := p.send(ctx, f, "stop"); err != nil {
		return req, fmt.Errorf("stop sound: %w", err)
	}
	p.log.Debug().Uint16("index", index).Bool("all", all).Uint16("request_id", req).Msg("stop sound")
	return req, nil
}

func (p *Player) send(ctx context.Context, f otscan.Frame, op string) error {
	if err := p.bus.Send(ctx, f); err != nil {
		return err
	}
	p.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	return nil
}
