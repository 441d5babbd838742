// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/spf13/cobra"
)

var sendWait int

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [ARGS]",
	Short: "Send one command to the controller",
	Long: `Send a single SM100 command and optionally wait for the controller's reply.

Commands:
  ping                      Ping the controller (it echoes the ping)
  zone CHANNEL on|off       Switch a zone valve (channel 0-63)
  datetime [RFC3339]        Set the controller clock (default: now, local time)
  program NAME              Request an irrigation program
  config                    Request the controller configuration
  info                      Request model and firmware information

With --wait N the command waits up to N seconds for the first message of the
same kind and prints it.

Examples:
  mistctl send ping --port /dev/ttyUSB0 --wait 2
  mistctl send zone 4 on --tcp controller.local:4001
  mistctl send datetime 2025-06-01T06:00:00+10:00 --port /dev/ttyUSB0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendWait, "wait", 0, "Seconds to wait for a reply (0 does not wait)")
}

// parseZoneStatus accepts on/off or the numeric status codes
func parseZoneStatus(s string) (int, error) {
	switch strings.ToLower(s) {
	case "on", "1":
		return protocol.ZoneOn, nil
	case "off", "0":
		return protocol.ZoneOff, nil
	default:
		return 0, fmt.Errorf("invalid zone status %q (use on or off)", s)
	}
}

// buildCommand turns command line arguments into an outbound message
func buildCommand(args []string, now time.Time) (*protocol.Message, error) {
	name, rest := strings.ToLower(args[0]), args[1:]
	want := func(n int, usage string) error {
		if len(rest) != n {
			return fmt.Errorf("usage: send %s", usage)
		}
		return nil
	}

	switch name {
	case "ping":
		if err := want(0, "ping"); err != nil {
			return nil, err
		}
		return protocol.NewPing(), nil

	case "zone":
		if err := want(2, "zone CHANNEL on|off"); err != nil {
			return nil, err
		}
		channel, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q", rest[0])
		}
		status, err := parseZoneStatus(rest[1])
		if err != nil {
			return nil, err
		}
		return protocol.NewSetZone(channel, status)

	case "datetime":
		if len(rest) > 1 {
			return nil, fmt.Errorf("usage: send datetime [RFC3339]")
		}
		t := now
		if len(rest) == 1 {
			parsed, err := time.Parse(time.RFC3339, rest[0])
			if err != nil {
				return nil, fmt.Errorf("invalid time %q: %w", rest[0], err)
			}
			t = parsed
		}
		return protocol.NewSetDateTime(t)

	case "program":
		if err := want(1, "program NAME"); err != nil {
			return nil, err
		}
		return protocol.NewGetProgram(rest[0])

	case "config":
		if err := want(0, "config"); err != nil {
			return nil, err
		}
		return protocol.NewGetConfig(), nil

	case "info":
		if err := want(0, "info"); err != nil {
			return nil, err
		}
		return protocol.NewGetInfo(), nil

	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	msg, err := buildCommand(args, time.Now())
	if err != nil {
		return err
	}

	s, connInfo, err := OpenSession(cmd)
	if err != nil {
		return err
	}
	defer s.Stop()

	out := cmd.OutOrStdout()
	p := &printer{out: out}
	fmt.Fprintln(out, headerStyle.Render("Connection: "+connInfo))

	if sendWait <= 0 {
		if err := s.Send(msg); err != nil {
			return err
		}
		p.message(time.Now(), msg)
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(sendWait)*time.Second)
	defer cancel()

	p.message(time.Now(), msg)
	resp, err := s.Request(ctx, msg)
	if err != nil {
		return fmt.Errorf("no %s reply within %d seconds: %w", msg.Tag(), sendWait, err)
	}
	p.message(resp.Timestamp(), resp)
	return nil
}
