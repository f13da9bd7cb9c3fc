// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// otsbridge - OpenFront Tactical Suite CAN bridge
//
// Bridges OpenFront game events to the OTS controller's LED panel and CAN
// audio module, and provides tools for the module bus.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/otsbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
