// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// esptrace - ESP32 Serial Bootloader Protocol Analyzer
//
// A CLI tool for decoding the SLIP framed command protocol spoken between
// flashing tools and the ESP32 ROM and stub loaders.

package main

import (
	"os"

	"github.com/Thermoquad/esptrace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
