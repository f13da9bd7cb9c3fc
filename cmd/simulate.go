// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/simulator"
)

var (
	simNodeID       uint8
	simPlayDuration time.Duration
	simStatus       time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as an audio module on the CAN bus",
	Long: `Answer MODULE_QUERY, PLAY_SOUND and STOP_SOUND the way the audio module
does, and send SOUND_STATUS periodically. Sounds are looked up in the sound
catalog; indices that are not in it are rejected with INVALID_INDEX.

Use this with a second SLCAN adapter to test the controller without the
audio module hardware.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Uint8Var(&simNodeID, "node", 1, "Node id sent in MODULE_ANNOUNCE")
	simulateCmd.Flags().DurationVar(&simPlayDuration, "play-duration", simulator.DefaultPlayDuration, "How long each sound plays")
	simulateCmd.Flags().DurationVar(&simStatus, "status-interval", 5*time.Second, "SOUND_STATUS period (0 disables)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, err := config.Catalog()
	if err != nil {
		return err
	}

	bus, connInfo, err := OpenBus(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	m := simulator.New(bus, catalog, simNodeID, logger)
	m.PlayDuration = simPlayDuration
	m.StatusInterval = simStatus

	logger.Info().Str("connection", connInfo).Int("sounds", catalog.Len()).Msg("simulator started")
	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
