// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive controller dashboard",
	Long: `Full screen view of a running session: traffic statistics, zone states,
controller clock and a log of recent events.

Commands typed at the prompt use the same syntax as 'mistctl send', e.g.
"zone 4 on", "datetime" or "program Morning".`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	s, connInfo, err := OpenSession(cmd)
	if err != nil {
		return err
	}
	defer s.Stop()

	m := initialDashboardModel(connInfo, s.Statistics(), s.Send)
	p := tea.NewProgram(m, tea.WithAltScreen())

	l := &dashboardListener{p: p}
	s.AddListener(l)
	defer s.RemoveListener(l)

	go func() {
		<-s.Done()
		p.Send(stoppedMsg{err: s.Err()})
	}()

	_, err = p.Run()
	return err
}
