// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/radicalsystems/mistctl/pkg/protocol"
	"github.com/radicalsystems/mistctl/pkg/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	statsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// printer renders session traffic as styled lines
type printer struct {
	out io.Writer
}

func (p *printer) banner(title, connInfo string) {
	fmt.Fprintln(p.out, titleStyle.Render(title))
	fmt.Fprintln(p.out, headerStyle.Render("Connection: "+connInfo))
	fmt.Fprintln(p.out)
}

func (p *printer) message(ts time.Time, m *protocol.Message) {
	p.frame(ts, m.Direction(), m)
}

// frame prints m as travelling in dir
func (p *printer) frame(ts time.Time, dir protocol.Direction, m *protocol.Message) {
	arrow := "<-"
	if dir == protocol.Outbound {
		arrow = "->"
	}
	line := fmt.Sprintf("[%s] %s %s", ts.Format("15:04:05.000"), arrow, kindStyle.Render(protocol.FormatKind(m.Kind())))
	if fields := protocol.FormatFields(m); fields != "" {
		line += "  " + fields
	}
	fmt.Fprintln(p.out, line)

	for _, v := range protocol.ValidateMessage(m) {
		fmt.Fprintf(p.out, "  %s %s\n", warningStyle.Render(v.Type.String()+":"), v.Message)
	}
}

func (p *printer) decodeError(ts time.Time, raw, reason string) {
	fmt.Fprintf(p.out, "[%s] %s %s\n  %q\n",
		ts.Format("15:04:05.000"), errorStyle.Render("DECODE ERROR:"), reason, raw)
}

func (p *printer) line(ts time.Time, n transport.Notification) {
	state := "low"
	if n.Value {
		state = "high"
	}
	fmt.Fprintf(p.out, "[%s] %s %s\n", ts.Format("15:04:05.000"), headerStyle.Render(n.Event.String()), state)
}

func (p *printer) stats(summary string) {
	fmt.Fprintln(p.out, statsStyle.Render(summary))
}

// printListener adapts a printer to the session listener interfaces
type printListener struct {
	p *printer
}

func (l *printListener) OnMessage(m *protocol.Message) {
	l.p.message(m.Timestamp(), m)
}

func (l *printListener) OnDecodeError(err *protocol.DecodeError) {
	l.p.decodeError(time.Now(), err.Raw, err.Reason)
}

func (l *printListener) OnTransportEvent(n transport.Notification) {
	l.p.line(time.Now(), n)
}
