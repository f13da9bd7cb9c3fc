// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

var (
	errorsOnly    bool
	statsInterval int
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display CAN frames in human-readable format",
	Long: `Continuously decode and display OTS CAN frames as they arrive.

Each frame is shown with timestamp, message type and decoded payload. Frames
with anomalies (bad length, unknown tag, reserved bytes set, unknown flags)
are highlighted, and a statistics summary is printed periodically.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only show frames with anomalies")
	rawLogCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics interval in seconds (0 disables)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bus, connInfo, err := OpenBus(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("otsbridge - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var stats <-chan time.Time
	if statsInterval > 0 {
		ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer ticker.Stop()
		stats = ticker.C
	}

	frames := make(chan otscan.Frame)
	errCh := make(chan error, 1)
	go func() {
		for {
			f, err := bus.Receive(ctx)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case f := <-frames:
			printFrame(time.Now(), &f)
		case <-stats:
			s := bus.Statistics()
			fmt.Print(s.String())
		case err := <-errCh:
			if errors.Is(err, canbus.ErrClosed) {
				logger.Info().Msg("connection closed")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				s := bus.Statistics()
				fmt.Print("\n" + s.String())
				return nil
			}
			return err
		}
	}
}

// printFrame prints a frame and any anomalies found in it
func printFrame(ts time.Time, f *otscan.Frame) {
	anomalies := otscan.ValidateFrame(f)
	if errorsOnly && len(anomalies) == 0 {
		return
	}

	fmt.Print(otscan.FormatFrame(ts, f))
	for i, a := range anomalies {
		fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
	}
	fmt.Println()
}
