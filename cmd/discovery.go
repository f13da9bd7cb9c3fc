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

var (
	discoveryTimeout time.Duration
	discoveryType    uint8
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover expansion modules on the CAN bus",
	Long: `Send MODULE_QUERY and list every module that answers with MODULE_ANNOUNCE.

By default every module type is queried (--type 255). Modules answer with
their type, firmware version, capabilities and CAN id block.

Examples:
  # Enumerate all modules through a USB SLCAN adapter
  otsbridge discovery --port /dev/ttyACM0

  # Only look for audio modules
  otsbridge discovery --port /dev/ttyACM0 --type 1

Exit codes:
  0 - Discovery successful (at least one module found)
  1 - Discovery failed (no modules answered)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().DurationVar(&discoveryTimeout, "timeout", otscan.DiscoveryWaitMs*time.Millisecond, "How long to wait for announces")
	discoveryCmd.Flags().Uint8Var(&discoveryType, "type", otscan.QueryEnumerateAll, "Module type to query (255 = all)")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bus, connInfo, err := OpenBus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer bus.Close()

	fmt.Printf("otsbridge - Module Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n\n", discoveryTimeout)

	fmt.Printf("Sending MODULE_QUERY (type=0x%02X)...\n", discoveryType)
	if err := bus.Send(ctx, otscan.BuildModuleQuery(discoveryType)); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	modules, err := collectAnnounces(ctx, bus, discoveryTimeout)
	if err != nil {
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Modules found: %d\n", len(modules))
	if len(modules) == 0 {
		fmt.Printf("No modules discovered. Check bus wiring, termination and module power.\n")
		os.Exit(1)
	}
	return nil
}

type frameReceiver interface {
	Receive(ctx context.Context) (otscan.Frame, error)
}

// collectAnnounces gathers MODULE_ANNOUNCE frames until wait elapses.
// A module that answers twice is listed once.
func collectAnnounces(ctx context.Context, bus frameReceiver, wait time.Duration) ([]otscan.ModuleInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var modules []otscan.ModuleInfo
	seen := make(map[uint8]bool)
	for {
		f, err := bus.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return modules, nil
			}
			return modules, err
		}
		if f.ID != otscan.IDModuleAnnounce {
			continue
		}
		info, err := otscan.ParseModuleAnnounce(&f)
		if err != nil {
			logger.Warn().Err(err).Msg("bad announce")
			continue
		}
		if seen[info.NodeID] {
			continue
		}
		seen[info.NodeID] = true
		modules = append(modules, info)

		fmt.Printf("\nModule found:\n")
		fmt.Printf("  Type: %s\n", otscan.ModuleName(info.Type))
		fmt.Printf("  Node: %d\n", info.NodeID)
		fmt.Printf("  Firmware: v%d.%d\n", info.FirmwareMaj, info.FirmwareMin)
		fmt.Printf("  CAN block: 0x%02X0-0x%02XF\n", info.BlockBase, info.BlockBase)
		fmt.Printf("  Capabilities: 0x%02X\n", info.Capabilities)
	}
}
