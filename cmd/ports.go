// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/radicalsystems/mistctl/pkg/transport"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports found on this machine.

Any of the listed names can be passed to --port.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.Ports()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, warningStyle.Render("No serial ports found"))
		return nil
	}
	for _, name := range ports {
		fmt.Fprintln(out, name)
	}
	return nil
}
