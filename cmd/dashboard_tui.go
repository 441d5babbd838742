// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/radicalsystems/mistctl/pkg/session"
	"github.com/radicalsystems/mistctl/pkg/transport"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type dashboardModel struct {
	connInfo      string
	stats         *session.Statistics
	send          func(*protocol.Message) error
	input         textinput.Model
	zones         map[int]bool
	clock         *protocol.DateTime
	info          string
	lines         map[transport.Event]bool
	eventLog      []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type dashTickMsg time.Time
type inboundMsg struct{ m *protocol.Message }
type decodeErrMsg struct{ err *protocol.DecodeError }
type lineMsg struct{ n transport.Notification }
type sentMsg struct {
	m   *protocol.Message
	err error
}
type stoppedMsg struct{ err error }

func initialDashboardModel(connInfo string, stats *session.Statistics, send func(*protocol.Message) error) dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "zone 4 on"
	ti.Prompt = "> "
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return dashboardModel{
		connInfo:      connInfo,
		stats:         stats,
		send:          send,
		input:         ti,
		zones:         make(map[int]bool),
		lines:         make(map[transport.Event]bool),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(dashTickCmd(), textinput.Blink)
}

func dashTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.input.Value() == "" {
				m.quitting = true
				return m, tea.Quit
			}
		case "enter":
			return m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dashTickMsg:
		return m, dashTickCmd()

	case inboundMsg:
		m.observe(msg.m)

	case decodeErrMsg:
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %s %q", msg.err.Reason, msg.err.Raw), true)

	case lineMsg:
		m.lines[msg.n.Event] = msg.n.Value
		m.addLogEntry(fmt.Sprintf("%s %s", msg.n.Event, onOff(msg.n.Value)), false)

	case sentMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s not sent: %v", protocol.FormatKind(msg.m.Kind()), msg.err), true)
		} else {
			m.addLogEntry("-> "+describeMessage(msg.m), false)
		}

	case stoppedMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Session stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Session stopped", true)
		}
	}

	return m, nil
}

// submit parses the command line and sends it outside the update loop
func (m dashboardModel) submit() (tea.Model, tea.Cmd) {
	fields := strings.Fields(m.input.Value())
	m.input.Reset()
	if len(fields) == 0 {
		return m, nil
	}

	out, err := buildCommand(fields, time.Now())
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	send := m.send
	return m, func() tea.Msg {
		return sentMsg{m: out, err: send(out)}
	}
}

// observe updates the controller view from an inbound message
func (m *dashboardModel) observe(msg *protocol.Message) {
	switch msg.Kind() {
	case protocol.KindSetZone:
		if ch, st, ok := msg.Zone(); ok {
			m.zones[ch] = st == protocol.ZoneOn
		}
	case protocol.KindSetDateTime:
		if dt, ok := msg.DateTime(); ok {
			m.clock = &dt
		}
	case protocol.KindGetInfo:
		m.info = protocol.FormatFields(msg)
	}

	m.addLogEntry("<- "+describeMessage(msg), false)
	for _, v := range protocol.ValidateMessage(msg) {
		m.addLogEntry(fmt.Sprintf("%s: %s", protocol.FormatKind(msg.Kind()), v.Message), true)
	}
}

func describeMessage(msg *protocol.Message) string {
	s := protocol.FormatKind(msg.Kind())
	if fields := protocol.FormatFields(msg); fields != "" {
		s += " " + fields
	}
	return s
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func (m *dashboardModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Background(lipgloss.Color("235")).Padding(0, 1).Render("MISTCTL - DASHBOARD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter sends a command | Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Frames)),
		statsLabelStyle.Render("Messages:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Messages)),
		statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.DecodeErrors)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.CommandsSent)),
		statsLabelStyle.Render("Read Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.ReadErrors)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msgs/s", snap.MessageRate)),
	))
	s.WriteString(statsStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Controller state
	s.WriteString(statsLabelStyle.Render("Controller:"))
	s.WriteString("\n")
	controller := strings.Builder{}
	controller.WriteString(statsLabelStyle.Render("Zones: "))
	if len(m.zones) == 0 {
		controller.WriteString(headerStyle.Render("(none reported)"))
	} else {
		channels := make([]int, 0, len(m.zones))
		for ch := range m.zones {
			channels = append(channels, ch)
		}
		sort.Ints(channels)
		for i, ch := range channels {
			if i > 0 {
				controller.WriteString("  ")
			}
			label := fmt.Sprintf("%02d:%s", ch, onOff(m.zones[ch]))
			if m.zones[ch] {
				controller.WriteString(statsValueStyle.Render(label))
			} else {
				controller.WriteString(headerStyle.Render(label))
			}
		}
	}
	if m.clock != nil {
		controller.WriteString(fmt.Sprintf("\n%s %04d-%02d-%02d %02d:%02d:%02d",
			statsLabelStyle.Render("Clock:"),
			m.clock.Year, m.clock.Month, m.clock.Day, m.clock.Hour, m.clock.Minute, m.clock.Second))
	}
	if m.info != "" {
		controller.WriteString(fmt.Sprintf("\n%s %s", statsLabelStyle.Render("Info:"), m.info))
	}
	if len(m.lines) > 0 {
		controller.WriteString(fmt.Sprintf("\n%s CTS=%s DSR=%s", statsLabelStyle.Render("Lines:"),
			onOff(m.lines[transport.EventCTS]), onOff(m.lines[transport.EventDSR])))
	}
	s.WriteString(statsStyle.Render(controller.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 18 // Reserve space for header, panels and input
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), entry.message))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(statsStyle.Width(width).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}

// dashboardListener forwards session traffic into the program
type dashboardListener struct {
	p *tea.Program
}

func (l *dashboardListener) OnMessage(m *protocol.Message) {
	l.p.Send(inboundMsg{m: m})
}

func (l *dashboardListener) OnDecodeError(err *protocol.DecodeError) {
	l.p.Send(decodeErrMsg{err: err})
}

func (l *dashboardListener) OnTransportEvent(n transport.Notification) {
	l.p.Send(lineMsg{n: n})
}
