// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/eventfeed"
	"github.com/Thermoquad/otsbridge/pkg/events"
)

var listenDuration time.Duration

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print messages from the event server",
	Long: `Connect to the event server, send the handshake and print every decoded
message. No CAN adapter is needed. Useful for checking the server, the
credentials and connection stability.

The connection is retried with backoff while the command runs.

Exit codes:
  0 - Connected at least once
  1 - Never connected
  2 - Configuration error`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().DurationVar(&listenDuration, "duration", 0, "Stop after this long (0 runs until Ctrl+C)")
	listenCmd.Flags().String("events-url", "", "Event server WebSocket URL (ws:// or wss://)")
	bindCommandFlag(listenCmd, config.KeyEventsURL, "events-url")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	if listenDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, listenDuration)
		defer cancel()
	}

	ep := eventfeed.Endpoint{
		URL:      config.GetString(config.KeyEventsURL),
		Username: config.GetString(config.KeyEventsUsername),
	}
	if ep.URL == "" {
		fmt.Fprintf(os.Stderr, "events.url or --events-url must be set\n")
		os.Exit(2)
	}
	if ep.Username != "" {
		var err error
		if ep.Password, err = GetPassword(envEventsPassword); err != nil {
			return err
		}
	}

	var received, failed atomic.Uint64
	handler := func(ctx context.Context, msg events.Message) error {
		received.Add(1)
		line, err := formatMessage(msg)
		if err != nil {
			failed.Add(1)
		}
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
		return nil
	}

	client, err := eventfeed.New(eventfeed.Config{
		Endpoint:   ep,
		ClientType: config.GetString(config.KeyEventsClient),
	}, handler, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("otsbridge - Event Feed\n")
	fmt.Printf("Server: %s\n\n", ep.URL)

	var everConnected atomic.Bool
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if client.Connected() {
					everConnected.Store(true)
				}
			}
		}
	}()

	start := time.Now()
	err = client.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	fmt.Printf("\n--- Results ---\n")
	fmt.Printf("Duration: %s\n", time.Since(start).Truncate(time.Second))
	fmt.Printf("Messages received: %d\n", received.Load())
	if n := failed.Load(); n > 0 {
		fmt.Printf("Messages with bad data: %d\n", n)
	}
	if !everConnected.Load() && received.Load() == 0 {
		fmt.Printf("Result: FAILED (never connected)\n")
		os.Exit(1)
	}
	return nil
}

// formatMessage renders a message on one line. The error reports event
// data that does not decode.
func formatMessage(msg events.Message) (string, error) {
	switch {
	case msg.Event != nil:
		ev := msg.Event
		line := fmt.Sprintf("EVENT %s", ev.Type)
		if ev.Message != "" {
			line += fmt.Sprintf(" %q", ev.Message)
		}
		if ev.Type.IsLaunch() || ev.Type.IsAlert() {
			if nd := ev.Nuke(); nd.HasUnit {
				line += fmt.Sprintf(" unit=%d", nd.UnitID)
			}
		}
		if ev.Type == events.SoundPlay {
			sd, err := ev.Sound()
			if err != nil {
				return line + " (bad sound data)", err
			}
			line += fmt.Sprintf(" sound=%d", sd.Index)
		}
		return line, nil
	case msg.Command != nil:
		return fmt.Sprintf("CMD %s %v", msg.Command.Action, msg.Command.Params), nil
	default:
		return fmt.Sprintf("%s client=%s", msg.Kind, msg.ClientType), nil
	}
}
