// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/radicalsystems/mistctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Serial connection flags
	portName  string
	baudRate  int
	dataBits  int
	stopBits  string
	parity    string
	flowIn    string
	flowOut   string
	timeoutMs int

	// Network connection flags
	tcpAddr       string
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configFile string
	logLevel   string

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "mistctl",
	Short: "SM100 irrigation controller client",
	Long: `mistctl - A CLI tool for monitoring and commanding SM100 irrigation and mist
controllers over a serial line, a TCP socket or a WebSocket serial bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600] [--databits 8] [--parity none]
  TCP:       --tcp controller.local:4001
  WebSocket: --url ws://host/path [--username user]

Connection settings may also come from --config FILE (.xml, .toml, .yaml);
flags given on the command line override the file.

For WebSocket authentication, the password is read from the MISTCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.Init("mistctl", os.Stderr, logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	addConnectionFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); default from MISTCTL_LOG_LEVEL")
}

// addConnectionFlags registers the flags read by BuildParameters
func addConnectionFlags(fs *pflag.FlagSet) {
	// Serial connection flags
	fs.StringVarP(&portName, "port", "p", "", "Serial port device")
	fs.IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")
	fs.IntVar(&dataBits, "databits", 8, "Data bits: 5, 6, 7 or 8")
	fs.StringVar(&stopBits, "stopbits", "1", "Stop bits: 1, 1.5 or 2")
	fs.StringVar(&parity, "parity", "none", "Parity: none, odd, even, mark or space")
	fs.StringVar(&flowIn, "flow-in", "none", "Input flow control: none, rtscts or xonxoff")
	fs.StringVar(&flowOut, "flow-out", "none", "Output flow control: none, rtscts or xonxoff")
	fs.IntVar(&timeoutMs, "timeout", 2000, "Receive timeout in milliseconds (0 blocks)")

	// Network connection flags
	fs.StringVar(&tcpAddr, "tcp", "", "TCP endpoint (host:port)")
	fs.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	fs.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	fs.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	fs.StringVarP(&configFile, "config", "c", "", "Connection settings file (.xml, .toml, .yaml)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
