// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/controller"
	"github.com/Thermoquad/otsbridge/pkg/events"
	"github.com/Thermoquad/otsbridge/pkg/gamestate"
	"github.com/Thermoquad/otsbridge/pkg/logging"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

// logQueueSize bounds log lines waiting for the TUI
const logQueueSize = 256

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the bridge with a live terminal dashboard",
	Long: `Run the same bridge as 'run' and show the controller state in a
terminal UI: game phase, tracked nukes, the LED panel, the audio module and
recent log lines.

Keys:
  a / h / m   send an atom, hydrogen or MIRV launch (as the server's send-nuke)
  r           reset to the lobby and clear the panel
  q           quit

Supports serial, WebSocket and --simulate.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&simulateModule, "simulate", false, "Use an in-process simulated audio module instead of a CAN adapter")
}

// logSink carries log lines to the TUI. Lines are dropped while the
// queue is full.
type logSink chan string

func (s logSink) Write(b []byte) (int, error) {
	select {
	case s <- strings.TrimRight(string(b), "\n"):
	default:
	}
	return len(b), nil
}

// action runs a dashboard key action against the controller
func (b *bridge) action(ctx context.Context, name string) error {
	if name == "reset" {
		return b.ctrl.Reset(ctx)
	}
	return b.ctrl.HandleMessage(ctx, events.Message{
		Kind: events.KindCommand,
		Command: &events.Command{
			Action: controller.ActionSendNuke,
			Params: map[string]interface{}{"nukeType": name},
		},
	})
}

// statistics returns receive statistics when the bus is an SLCAN stream
func (b *bridge) statistics() func() otscan.Statistics {
	sb, ok := b.bus.(*canbus.StreamBus)
	if !ok {
		return nil
	}
	return sb.Statistics
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// The dashboard owns the terminal, logs go to its event pane
	sink := make(logSink, logQueueSize)
	logger = logging.New(sink, config.GetString(config.KeyLogLevel), true)

	b, err := newBridge(ctx)
	if err != nil {
		return err
	}
	b.ctrl.Subscribe(func(from, to gamestate.Phase) {
		sink.Write([]byte(fmt.Sprintf("phase %s → %s", from, to)))
	})

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()

	m := newMonitorModel(b.connInfo, b.ctrl, b.statistics(), sink,
		func(name string) error { return b.action(ctx, name) })
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Stop the dashboard if the bridge dies underneath it
	go func() {
		select {
		case err := <-runErr:
			runErr <- err
			p.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-runErr
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return <-runErr
}
