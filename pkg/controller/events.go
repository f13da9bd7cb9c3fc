// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/nuketrack"
	"github.com/Thermoquad/otsbridge/pkg/result"
)

// ActionSendNuke asks the device to launch a nuke of params.nukeType
const ActionSendNuke = "send-nuke"

func (c *Controller) handleEvent(ctx context.Context, ev *events.Event) error {
	c.lastEvent = ev.Type
	c.log.Debug().Stringer("type", ev.Type).Str("message", ev.Message).Msg("event")

	var errs *multierror.Error
	if err := c.machine.Update(ev.Type); err != nil {
		errs = multierror.Append(errs, err)
	}

	switch ev.Type {
	case events.GameStart:
		errs = multierror.Append(errs, c.panel.SetIndicator(indicator.Alert, indicator.AlertWarning, indicator.On))

	case events.GameEnd, events.Win, events.Lose:
		cmds := make([]indicator.Command, 0, indicator.AlertCount)
		for i := 0; i < indicator.AlertCount; i++ {
			cmds = append(cmds, indicator.Command{Kind: indicator.Alert, Index: i, Effect: indicator.Off})
		}
		errs = multierror.Append(errs, c.panel.Apply(cmds...))

	case events.NukeLaunched, events.HydroLaunched, events.MIRVLaunched:
		errs = multierror.Append(errs, c.launch(ev))

	case events.AlertAtom, events.AlertHydro, events.AlertMIRV:
		errs = multierror.Append(errs, c.incoming(ev))

	case events.AlertLand:
		errs = multierror.Append(errs, c.invasion(indicator.AlertLand))

	case events.AlertNaval:
		errs = multierror.Append(errs, c.invasion(indicator.AlertNaval))

	case events.NukeExploded, events.NukeIntercepted:
		errs = multierror.Append(errs, c.resolve(ev, ev.Type == events.NukeExploded))

	case events.SoundPlay:
		sd, err := ev.Sound()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("sound event: %v: %w", err, result.ErrInvalidArgument))
			break
		}
		errs = multierror.Append(errs, c.play(ctx, sd.Index, sd.Interrupt, sd.HighPriority))
	}

	if c.opts.EventSounds && ev.Type != events.SoundPlay {
		if idx := events.SoundIndexFor(ev.Type); idx != 0 {
			errs = multierror.Append(errs, c.play(ctx, idx, false, false))
		}
	}

	return errs.ErrorOrNil()
}

func launchNukeType(t events.Type) nuketrack.Type {
	switch t {
	case events.HydroLaunched, events.AlertHydro:
		return nuketrack.Hydro
	case events.MIRVLaunched, events.AlertMIRV:
		return nuketrack.MIRV
	default:
		return nuketrack.Atom
	}
}

func launchEventType(t nuketrack.Type) events.Type {
	switch t {
	case nuketrack.Hydro:
		return events.HydroLaunched
	case nuketrack.MIRV:
		return events.MIRVLaunched
	default:
		return events.NukeLaunched
	}
}

// launch tracks an outgoing nuke and blinks its button LED
func (c *Controller) launch(ev *events.Event) error {
	typ := launchNukeType(ev.Type)

	var errs *multierror.Error
	if nd := ev.Nuke(); nd.HasUnit {
		if err := c.registry.RegisterLaunch(nd.UnitID, typ, nuketrack.Outgoing); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	errs = multierror.Append(errs, c.panel.SetTimed(indicator.Nuke, int(typ), indicator.Blink, LaunchBlink))
	return errs.ErrorOrNil()
}

// incoming tracks a nuke aimed at the player and lights its alert LED
// together with the warning LED
func (c *Controller) incoming(ev *events.Event) error {
	typ := launchNukeType(ev.Type)

	var errs *multierror.Error
	if nd := ev.Nuke(); nd.HasUnit {
		if err := c.registry.RegisterLaunch(nd.UnitID, typ, nuketrack.Incoming); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	errs = multierror.Append(errs, c.panel.Apply(
		indicator.Command{Kind: indicator.Alert, Index: int(typ) + 1, Effect: indicator.On, Duration: AlertDuration},
		indicator.Command{Kind: indicator.Alert, Index: indicator.AlertWarning, Effect: indicator.On, Duration: AlertDuration},
	))
	return errs.ErrorOrNil()
}

func (c *Controller) invasion(led int) error {
	return c.panel.Apply(
		indicator.Command{Kind: indicator.Alert, Index: led, Effect: indicator.On, Duration: LandDuration},
		indicator.Command{Kind: indicator.Alert, Index: indicator.AlertWarning, Effect: indicator.On, Duration: LandDuration},
	)
}

// resolve retires a nuke and turns off every LED whose count is now zero.
// Resolutions for units that were never tracked only refresh the LEDs.
func (c *Controller) resolve(ev *events.Event, exploded bool) error {
	if nd := ev.Nuke(); nd.HasUnit {
		err := c.registry.Resolve(nd.UnitID, exploded)
		if err != nil && !errors.Is(err, result.ErrNotFound) {
			return err
		}
	}

	var cmds []indicator.Command
	for typ := nuketrack.Atom; typ < nuketrack.TypeCount; typ++ {
		if c.registry.ActiveCount(typ, nuketrack.Incoming) == 0 {
			cmds = append(cmds, indicator.Command{Kind: indicator.Alert, Index: int(typ) + 1, Effect: indicator.Off})
		}
		if c.registry.ActiveCount(typ, nuketrack.Outgoing) == 0 {
			cmds = append(cmds, indicator.Command{Kind: indicator.Nuke, Index: int(typ), Effect: indicator.Off})
		}
	}
	return c.panel.Apply(cmds...)
}

func (c *Controller) play(ctx context.Context, index uint16, interrupt, highPriority bool) error {
	if c.opts.Player == nil {
		return nil
	}
	_, err := c.opts.Player.PlayIndex(ctx, index, interrupt, highPriority)
	return err
}

func (c *Controller) handleCommand(ctx context.Context, cmd *events.Command) error {
	switch cmd.Action {
	case ActionSendNuke:
		name, _ := events.GetString(cmd.Params, "nukeType")
		typ, ok := nuketrack.ParseType(name)
		if !ok {
			c.log.Warn().Str("nuke_type", name).Msg("send-nuke with unknown type")
			return fmt.Errorf("nuke type %q: %w", name, result.ErrInvalidArgument)
		}
		return c.sendNuke(ctx, typ)
	default:
		c.log.Warn().Str("action", cmd.Action).Msg("unknown command")
		return fmt.Errorf("command %q: %w", cmd.Action, result.ErrNotFound)
	}
}

// sendNuke applies a local launch and reports it to the server
func (c *Controller) sendNuke(ctx context.Context, typ nuketrack.Type) error {
	ev := &events.Event{
		Type:      launchEventType(typ),
		Timestamp: uint64(time.Now().UnixMilli()),
		Message:   "Nuke sent",
		Data:      map[string]interface{}{"nukeType": strings.ToLower(typ.String())},
	}

	var errs *multierror.Error
	errs = multierror.Append(errs, c.handleEvent(ctx, ev))
	if c.opts.Publisher != nil {
		errs = multierror.Append(errs, c.opts.Publisher.Publish(ctx, ev))
	}
	return errs.ErrorOrNil()
}
