// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radicalsystems/mistctl/pkg/capture"
	"github.com/radicalsystems/mistctl/pkg/mqttbridge"
	"github.com/radicalsystems/mistctl/pkg/session"
	"github.com/spf13/cobra"
)

var (
	monitorCapture    string
	monitorMQTT       string
	monitorMQTTPrefix string
	monitorMQTTUser   string
	monitorStats      int
	monitorMaxErrors  int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display controller traffic in human-readable format",
	Long: `Continuously decode and display SM100 protocol messages as they arrive.

Each message is shown with timestamp, kind and decoded fields. Frames that do
not decode are highlighted, and field values outside the controller's ranges
are flagged below the message.

Traffic can additionally be recorded to a capture file (--capture) for later
replay, or republished to an MQTT broker (--mqtt tcp://broker:1883).
With --mqtt-username the broker password is read from MISTCTL_MQTT_PASSWORD,
or prompted for when it is unset.

Supports serial, TCP and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record traffic to a capture file")
	monitorCmd.Flags().StringVar(&monitorMQTT, "mqtt", "", "Republish traffic to an MQTT broker URL")
	monitorCmd.Flags().StringVar(&monitorMQTTPrefix, "mqtt-prefix", mqttbridge.DefaultPrefix, "MQTT topic prefix")
	monitorCmd.Flags().StringVar(&monitorMQTTUser, "mqtt-username", "", "MQTT username")
	monitorCmd.Flags().IntVar(&monitorStats, "stats", 0, "Print statistics every N seconds (0 disables)")
	monitorCmd.Flags().IntVar(&monitorMaxErrors, "max-read-errors", 0, "Stop after N consecutive read errors (0 retries forever)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := &printer{out: out}

	s, connInfo, err := OpenSession(cmd, session.WithMaxReadErrors(monitorMaxErrors))
	if err != nil {
		return err
	}
	defer s.Stop()

	p.banner("mistctl - Monitor", connInfo+"  (Ctrl+C to exit)")
	s.AddListener(&printListener{p: p})

	if monitorCapture != "" {
		f, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()

		bw := bufio.NewWriter(f)
		defer bw.Flush()

		w, err := capture.NewWriter(bw, s.Driver().Parameters().Target())
		if err != nil {
			return err
		}
		s.AddListener(w)
		defer func() {
			// No more records once the session is down
			_ = s.Stop()
			logger.Info().Int("records", w.Count()).Str("file", monitorCapture).Msg("capture closed")
		}()
	}

	if monitorMQTT != "" {
		var password string
		if monitorMQTTUser != "" {
			password, err = lookupPassword(MQTTPasswordEnv, monitorMQTTUser+" at "+monitorMQTT)
			if err != nil {
				return err
			}
		}
		client, err := mqttbridge.Dial(mqttbridge.ClientOptions{
			Broker:   monitorMQTT,
			Username: monitorMQTTUser,
			Password: password,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Stop()
			client.Close()
		}()

		bridge := mqttbridge.New(client, mqttbridge.WithPrefix(monitorMQTTPrefix), mqttbridge.WithLogger(logger))
		s.AddListener(bridge)
		logger.Info().Str("broker", monitorMQTT).Str("prefix", bridge.Prefix()).Msg("publishing to MQTT")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var statsTick <-chan time.Time
	if monitorStats > 0 {
		ticker := time.NewTicker(time.Duration(monitorStats) * time.Second)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	for {
		select {
		case <-sigs:
			fmt.Fprintln(out)
			p.stats(s.Statistics().String())
			return nil

		case <-s.Done():
			p.stats(s.Statistics().String())
			if err := s.Err(); err != nil {
				return err
			}
			return nil

		case <-statsTick:
			p.stats(s.Statistics().String())
		}
	}
}
