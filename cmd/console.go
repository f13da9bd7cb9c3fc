// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/otsbridge/pkg/commands"
	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Play sounds from text commands on stdin",
	Long: `Read newline-terminated commands from stdin and play the mapped sound.

The command table comes from console.commands in the config file:

  console:
    commands:
      - command: play1
        file: track1.wav
      - command: play2
        file: track2.wav

Matching is exact and case-sensitive. Unknown commands are logged and ignored.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	table, err := config.Commands()
	if err != nil {
		return err
	}

	player, bus, err := openPlayer(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	d := commands.New(logger)
	if err := d.Init(table, player.Play); err != nil {
		return err
	}

	go logAcks(ctx, bus)

	err = d.Run(ctx, os.Stdin)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logAcks drains the bus, logging what the audio module answers
func logAcks(ctx context.Context, bus frameReceiver) {
	for {
		f, err := bus.Receive(ctx)
		if err != nil {
			return
		}
		if f.ID != otscan.IDSoundAck {
			continue
		}
		ack, err := otscan.ParseSoundAck(&f)
		if err != nil {
			continue
		}
		if ack.OK {
			logger.Debug().Uint16("index", ack.SoundIndex).Uint16("request_id", ack.RequestID).Msg("sound ack")
		} else {
			logger.Warn().Uint16("index", ack.SoundIndex).Stringer("error", ack.Error).Msg("sound rejected")
		}
	}
}
