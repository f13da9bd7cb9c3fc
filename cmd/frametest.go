// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

var frameTestTimeout time.Duration

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test the bus by waiting for a valid CAN frame",
	Long: `Wait for a clean OTS CAN frame on the bus until timeout.

This command opens the SLCAN adapter (serial or WebSocket) and waits for any
frame that passes validation. Adapter lines that do not decode and frames with
anomalies are skipped. The audio module sends SOUND_STATUS every 5 seconds, so
a healthy bus answers well within the default timeout.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().DurationVar(&frameTestTimeout, "timeout", 10*time.Second, "How long to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bus, connInfo, err := OpenBus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer bus.Close()

	fmt.Printf("otsbridge - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", frameTestTimeout)
	fmt.Printf("Waiting for valid CAN frame...\n\n")

	f, skipped, err := waitValidFrame(ctx, bus, frameTestTimeout)
	switch {
	case err == nil:
		if skipped > 0 {
			fmt.Printf("(skipped %d frames with anomalies)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%03X)\n", otscan.FormatMessageType(f.ID), f.ID)
		fmt.Printf("  Length: %d bytes\n", f.Length)
		if st := bus.Statistics(); st.DecodeErrors > 0 {
			fmt.Printf("  Adapter decode errors before it: %d\n", st.DecodeErrors)
		}
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %s\n", frameTestTimeout)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}
	return nil
}

// waitValidFrame returns the first frame without anomalies and how many
// were skipped before it
func waitValidFrame(ctx context.Context, bus frameReceiver, wait time.Duration) (otscan.Frame, int, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	skipped := 0
	for {
		f, err := bus.Receive(ctx)
		if err != nil {
			return otscan.Frame{}, skipped, err
		}
		if len(otscan.ValidateFrame(&f)) == 0 {
			return f, skipped, nil
		}
		skipped++
	}
}
