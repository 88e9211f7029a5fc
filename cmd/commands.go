// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

var commandsVerbose bool

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the bootloader commands the decoder knows",
	Long: `Print the command descriptor table: opcode, name and a short description.
With --verbose the request payload layout is printed as well, followed by the
annotation categories the decoder emits.`,
	Args: cobra.NoArgs,
	// No connection or config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runCommands,
}

func init() {
	commandsCmd.Flags().BoolVarP(&commandsVerbose, "verbose", "v", false, "Show payload layouts")
	rootCmd.AddCommand(commandsCmd)
}

func runCommands(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, c := range espflash.Commands() {
		fmt.Fprintln(out, espflash.FormatCommand(c))
		if commandsVerbose && c.Payload != "" {
			for _, line := range strings.Split(c.Payload, "\n") {
				fmt.Fprintf(out, "        %s\n", line)
			}
		}
	}

	if commandsVerbose {
		fmt.Fprintf(out, "\nAnnotation categories:\n")
		for _, c := range espflash.Categories() {
			fmt.Fprintf(out, "  %-11s %s\n", c.String(), c.Description())
		}
	}
	return nil
}
