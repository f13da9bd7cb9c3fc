// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/controller"
	"github.com/Thermoquad/otsbridge/pkg/eventfeed"
	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/gamestate"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/simulator"
	"github.com/Thermoquad/otsbridge/pkg/sound"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bridge game events to the LED panel and audio module",
	Long: `Connect to the OpenFront event server and the CAN bus and drive the
controller: game events update the phase, the nuke tracker and the LED panel,
and play sounds on the audio module. send-nuke commands from the server are
echoed back as launch events.

Without events.url only the CAN side runs, which is useful with --simulate.

Configuration:
  events:
    url: wss://ots.example/ws
    username: controller       # password from OTS_EVENTS_PASSWORD
    clientType: firmware
  sound:
    volume: 255                # 0-100, 255 = potentiometer
    eventSounds: true`,
	RunE: runBridge,
}

var simulateModule bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("events-url", "", "Event server WebSocket URL (ws:// or wss://)")
	runCmd.Flags().BoolVar(&simulateModule, "simulate", false, "Use an in-process simulated audio module instead of a CAN adapter")
	bindCommandFlag(runCmd, config.KeyEventsURL, "events-url")
}

// bridge is the running controller with its bus and event feed
type bridge struct {
	bus      canbus.Bus
	connInfo string
	ctrl     *controller.Controller
	feed     *eventfeed.Client // nil without events.url
	sim      *simulator.Module // nil unless simulating
	simBus   canbus.Bus
}

// openBridgeBus opens the CAN adapter, or a loopback pair with the
// simulator on the far end
func openBridgeBus(ctx context.Context, catalog *sound.Catalog) (*bridge, error) {
	if !simulateModule {
		bus, connInfo, err := OpenBus(ctx)
		if err != nil {
			return nil, err
		}
		return &bridge{bus: bus, connInfo: connInfo}, nil
	}

	host, module := canbus.NewLoopback()
	return &bridge{
		bus:      host,
		connInfo: "Loopback: simulated audio module",
		sim:      simulator.New(module, catalog, 1, logger),
		simBus:   module,
	}, nil
}

func newBridge(ctx context.Context) (*bridge, error) {
	catalog, err := config.Catalog()
	if err != nil {
		return nil, err
	}
	volume, err := config.Volume()
	if err != nil {
		return nil, err
	}

	b, err := openBridgeBus(ctx, catalog)
	if err != nil {
		return nil, err
	}
	player, err := sound.NewPlayer(b.bus, catalog, volume, logger)
	if err != nil {
		b.close()
		return nil, err
	}

	opts := controller.Options{
		Player:      player,
		EventSounds: config.GetBool(config.KeyEventSounds),
	}

	if url := config.GetString(config.KeyEventsURL); url != "" {
		ep := eventfeed.Endpoint{
			URL:      url,
			Username: config.GetString(config.KeyEventsUsername),
		}
		if ep.Username != "" {
			if ep.Password, err = GetPassword(envEventsPassword); err != nil {
				b.close()
				return nil, err
			}
		}
		// b.ctrl is set below, before Run starts the feed
		handler := func(ctx context.Context, msg events.Message) error {
			return b.ctrl.HandleMessage(ctx, msg)
		}
		b.feed, err = eventfeed.New(eventfeed.Config{
			Endpoint:   ep,
			ClientType: config.GetString(config.KeyEventsClient),
		}, handler, logger)
		if err != nil {
			b.close()
			return nil, err
		}
		opts.Publisher = b.feed
	}

	b.ctrl, err = controller.New(indicator.NewPanel(logger), opts, logger)
	if err != nil {
		b.close()
		return nil, err
	}
	b.ctrl.Subscribe(func(from, to gamestate.Phase) {
		logger.Info().Stringer("from", from).Stringer("to", to).Msg("phase changed")
	})
	return b, nil
}

// Run blocks until ctx ends or a component fails
func (b *bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("component", name).Msg("stopped")
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			// One component down takes the rest with it
			cancel()
		}()
	}

	start("controller", b.ctrl.Run)
	start("bus", b.receive)
	if b.sim != nil {
		start("simulator", b.sim.Run)
	}
	if b.feed != nil {
		start("events", b.feed.Run)
	}

	if err := b.bus.Send(ctx, otscan.BuildModuleQuery(otscan.QueryEnumerateAll)); err != nil {
		logger.Warn().Err(err).Msg("module query failed")
	}

	wg.Wait()
	b.close()
	return errs.ErrorOrNil()
}

func (b *bridge) close() {
	b.bus.Close()
	if b.simBus != nil {
		b.simBus.Close()
	}
}

// receive feeds bus frames to the controller
func (b *bridge) receive(ctx context.Context) error {
	for {
		f, err := b.bus.Receive(ctx)
		if err != nil {
			return err
		}
		if err := b.ctrl.HandleFrame(ctx, f); err != nil {
			return err
		}
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	b, err := newBridge(ctx)
	if err != nil {
		return err
	}
	logger.Info().
		Str("connection", b.connInfo).
		Bool("events", b.feed != nil).
		Msg("bridge started")

	err = b.Run(ctx)
	s := b.ctrl.Snapshot()
	logger.Info().
		Uint64("processed", s.EventsProcessed).
		Uint64("failed", s.EventsFailed).
		Msg("bridge stopped")
	return err
}
