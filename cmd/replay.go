// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/radicalsystems/mistctl/pkg/capture"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Print a capture file recorded by monitor --capture",
	Long: `Decode and display a capture file in the same format as monitor.

Frames that failed to decode when they were captured are shown as decode
errors again.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return replay(cmd.OutOrStdout(), f)
}

func replay(out io.Writer, in io.Reader) error {
	r, err := capture.NewReader(in)
	if err != nil {
		return err
	}

	p := &printer{out: out}
	h := r.Header()
	p.banner("mistctl - Replay", fmt.Sprintf("%s (captured %s)", h.Target, h.StartTime().Format("2006-01-02 15:04:05")))

	count := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		count++

		if rec.Failed() {
			p.decodeError(rec.Timestamp(), string(rec.Raw), rec.Error)
			continue
		}
		m, err := rec.Message()
		if err != nil {
			p.decodeError(rec.Timestamp(), string(rec.Raw), err.Error())
			continue
		}
		p.frame(rec.Timestamp(), rec.Direction, m)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d records", count)))
	return nil
}
