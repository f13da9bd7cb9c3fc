// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Thermoquad/otsbridge/pkg/config"
	"github.com/Thermoquad/otsbridge/pkg/logging"
)

var (
	configFile string

	// Set in PersistentPreRunE
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "otsbridge",
	Short: "OpenFront Tactical Suite CAN bridge",
	Long: `otsbridge - A CLI tool for the OTS controller's CAN bus.

Bridges game events from the OpenFront server to the controller's LED panel
and audio module, and provides commands for logging, discovering and driving
expansion modules on the bus.

Connection modes (SLCAN adapter):
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the OTS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag can also be set in otsbridge.{json,yaml,toml}, searched for in the
working directory and $HOME/.config/otsbridge, or passed with --config.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(configFile); err != nil {
			return err
		}
		logger = logging.Setup(config.GetString(config.KeyLogLevel))
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug().Str("file", f).Msg("config loaded")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: search for otsbridge.*)")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, off)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 115200, "Baud rate (serial only)")
	flags.Int("bitrate", 500000, "CAN bitrate configured on the adapter (0 leaves it untouched)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	bindFlag(config.KeyLogLevel, "log-level")
	bindFlag(config.KeySerialPort, "port")
	bindFlag(config.KeySerialBaud, "baud")
	bindFlag(config.KeyCANBitrate, "bitrate")
	bindFlag(config.KeyBridgeURL, "url")
	bindFlag(config.KeyBridgeUsername, "username")
	bindFlag(config.KeyBridgeNoVerify, "no-ssl-verify")
}

func bindFlag(key, name string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
