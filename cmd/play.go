// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Thermoquad/otsbridge/pkg/canbus"
	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/result"
	"github.com/Thermoquad/otsbridge/pkg/sound"
)

var (
	playInterrupt bool
	playPriority  bool
	stopAll       bool
	ackTimeout    time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play <index|file>",
	Short: "Play a sound on the audio module",
	Long: `Send PLAY_SOUND for a sound index or a filename from the sound catalog,
then wait for the module's SOUND_ACK.

Examples:
  otsbridge play 100 --port /dev/ttyACM0
  otsbridge play game_start.wav --interrupt --port /dev/ttyACM0`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var stopCmd = &cobra.Command{
	Use:   "stop [index]",
	Short: "Stop a sound on the audio module",
	Long: `Send STOP_SOUND for one sound index, for the current sound when no
index is given, or for every source with --all.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStop,
}

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "List the sound catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := config.Catalog()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tFILE\tDESCRIPTION")
		for _, s := range catalog.Sounds() {
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Index, s.File, s.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(playCmd, stopCmd, soundsCmd)
	playCmd.Flags().BoolVar(&playInterrupt, "interrupt", false, "Replace the oldest source when the mixer is full")
	playCmd.Flags().BoolVar(&playPriority, "priority", false, "Mark the sound high priority")
	playCmd.Flags().Int("volume", otscan.VolumeUsePot, "Volume 0-100, 255 uses the module potentiometer")
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every playing sound")
	for _, c := range []*cobra.Command{playCmd, stopCmd} {
		c.Flags().DurationVar(&ackTimeout, "ack-timeout", time.Second, "How long to wait for SOUND_ACK (0 skips waiting)")
	}
	bindCommandFlag(playCmd, config.KeySoundVolume, "volume")
}

func bindCommandFlag(c *cobra.Command, key, name string) {
	if err := viper.BindPFlag(key, c.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}

// resolveSound accepts a catalog index or filename
func resolveSound(catalog *sound.Catalog, arg string) (uint16, error) {
	if n, err := strconv.ParseUint(arg, 10, 16); err == nil {
		if !catalog.Contains(uint16(n)) {
			logger.Warn().Uint64("index", n).Msg("index not in catalog, sending anyway")
		}
		return uint16(n), nil
	}
	idx, ok := catalog.IndexOf(arg)
	if !ok {
		return 0, fmt.Errorf("sound %q: %w", arg, result.ErrNotFound)
	}
	return idx, nil
}

func openPlayer(ctx context.Context) (*sound.Player, *canbus.StreamBus, error) {
	catalog, err := config.Catalog()
	if err != nil {
		return nil, nil, err
	}
	volume, err := config.Volume()
	if err != nil {
		return nil, nil, err
	}
	bus, connInfo, err := OpenBus(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("connection", connInfo).Msg("connected")

	player, err := sound.NewPlayer(bus, catalog, volume, logger)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return player, bus, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	player, bus, err := openPlayer(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	index, err := resolveSound(player.Catalog(), args[0])
	if err != nil {
		return err
	}

	req, err := player.PlayIndex(ctx, index, playInterrupt, playPriority)
	if err != nil {
		return err
	}
	fmt.Printf("PLAY_SOUND index=%d request=%d\n", index, req)
	return waitAck(ctx, bus, req)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	player, bus, err := openPlayer(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	index := uint16(otscan.SoundIndexAny)
	if len(args) == 1 {
		index, err = resolveSound(player.Catalog(), args[0])
		if err != nil {
			return err
		}
	}

	req, err := player.Stop(ctx, index, stopAll)
	if err != nil {
		return err
	}
	fmt.Printf("STOP_SOUND index=%s request=%d\n", formatIndex(index, stopAll), req)
	return waitAck(ctx, bus, req)
}

func formatIndex(index uint16, all bool) string {
	if all {
		return "all"
	}
	if index == otscan.SoundIndexAny {
		return "current"
	}
	return strconv.Itoa(int(index))
}

// waitAck waits for the SOUND_ACK carrying req
func waitAck(ctx context.Context, bus frameReceiver, req uint16) error {
	if ackTimeout <= 0 {
		return nil
	}
	ack, err := awaitAck(ctx, bus, req, ackTimeout)
	if err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("module rejected request %d: %s", req, ack.Error)
	}
	fmt.Printf("SOUND_ACK ok index=%d\n", ack.SoundIndex)
	return nil
}

func awaitAck(ctx context.Context, bus frameReceiver, req uint16, wait time.Duration) (otscan.SoundAck, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		f, err := bus.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return otscan.SoundAck{}, fmt.Errorf("no SOUND_ACK for request %d within %s: %w", req, wait, result.ErrFailure)
			}
			return otscan.SoundAck{}, err
		}
		if f.ID != otscan.IDSoundAck {
			continue
		}
		ack, err := otscan.ParseSoundAck(&f)
		if err != nil {
			logger.Warn().Err(err).Msg("bad ack")
			continue
		}
		if ack.RequestID == req {
			return ack, nil
		}
	}
}
