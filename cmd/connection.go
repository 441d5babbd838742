// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/radicalsystems/mistctl/pkg/params"
	"github.com/radicalsystems/mistctl/pkg/session"
	"github.com/radicalsystems/mistctl/pkg/transport"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Password environment variables. Passwords are never taken as flags so
// they stay out of shell history.
const (
	PasswordEnv     = "MISTCTL_PASSWORD"
	MQTTPasswordEnv = "MISTCTL_MQTT_PASSWORD"
)

// GetPassword returns the WebSocket bridge password for account from
// MISTCTL_PASSWORD, prompting when it is unset
func GetPassword(account string) (string, error) {
	return lookupPassword(PasswordEnv, account)
}

func lookupPassword(env, account string) (string, error) {
	if pw := os.Getenv(env); pw != "" {
		return pw, nil
	}

	fmt.Fprintf(os.Stderr, "Password for %s (or set %s): ", account, env)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readPasswordLine(os.Stdin, account)
	}
	pw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password for %s: %w", account, err)
	}
	return checkPassword(string(pw), account)
}

// readPasswordLine reads a piped password. Only the line ending is
// stripped; passwords may contain spaces.
func readPasswordLine(r io.Reader, account string) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password for %s: %w", account, err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"), account)
}

func checkPassword(pw, account string) (string, error) {
	if pw == "" {
		return "", fmt.Errorf("empty password for %s", account)
	}
	return pw, nil
}

// parseFlowFlag maps the CLI spelling (none, rtscts, xonxoff) to a
// direction specific flow control value
func parseFlowFlag(value string, input bool) (params.FlowControl, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return params.FlowNone, nil
	case "rtscts", "rts/cts":
		if input {
			return params.FlowRTSCTSIn, nil
		}
		return params.FlowRTSCTSOut, nil
	case "xonxoff", "xon/xoff":
		if input {
			return params.FlowXonXoffIn, nil
		}
		return params.FlowXonXoffOut, nil
	default:
		// Accept the long form used in settings files
		return params.ParseFlowControl(value)
	}
}

// BuildParameters layers the settings file (if any) under the connection
// flags that were given explicitly
func BuildParameters(cmd *cobra.Command) (params.Parameters, error) {
	p := params.Default("mistctl")
	if configFile != "" {
		loaded, err := params.LoadFile(configFile, p)
		if err != nil {
			return p, err
		}
		p = loaded
	}

	flags := cmd.Flags()
	b := p.Builder()
	if flags.Changed("baud") {
		b.BaudRate(baudRate)
	}
	if flags.Changed("databits") {
		b.DataBits(dataBits)
	}
	if flags.Changed("stopbits") {
		b.Set("stopbits", stopBits)
	}
	if flags.Changed("parity") {
		b.Set("parity", parity)
	}
	if flags.Changed("flow-in") {
		f, err := parseFlowFlag(flowIn, true)
		if err != nil {
			return p, err
		}
		b.FlowControlIn(f)
	}
	if flags.Changed("flow-out") {
		f, err := parseFlowFlag(flowOut, false)
		if err != nil {
			return p, err
		}
		b.FlowControlOut(f)
	}
	if flags.Changed("timeout") {
		b.ReceiveTimeout(time.Duration(timeoutMs) * time.Millisecond)
	}

	if tcpAddr != "" {
		if err := checkTCPAddr(tcpAddr); err != nil {
			return p, err
		}
	}

	set := 0
	for _, target := range []string{wsURL, tcpAddr, portName} {
		if target != "" {
			b.Target(target)
			set++
		}
	}
	if set > 1 {
		return p, fmt.Errorf("only one of --port, --tcp or --url may be specified")
	}

	built, err := b.Build()
	if err != nil {
		return p, err
	}
	if built.Target() == "" {
		return built, fmt.Errorf("either --port, --tcp or --url must be specified")
	}
	return built, nil
}

// checkTCPAddr rejects --tcp values that would not select the TCP backend
func checkTCPAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid --tcp address %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("invalid --tcp address %q: missing host", addr)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid --tcp address %q: port must be numeric", addr)
	}
	return nil
}

// describe returns a one line summary of the connection
func describe(d transport.Driver) string {
	p := d.Parameters()
	switch d.(type) {
	case *transport.WebSocket:
		return fmt.Sprintf("WebSocket: %s", p.Target())
	case *transport.TCP:
		return fmt.Sprintf("TCP: %s", p.Target())
	default:
		return fmt.Sprintf("Serial: %s", p)
	}
}

// OpenSession builds the driver selected by flags and starts a session on it
func OpenSession(cmd *cobra.Command, opts ...session.Option) (*session.Session, string, error) {
	p, err := BuildParameters(cmd)
	if err != nil {
		return nil, "", err
	}

	driverOpts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithInsecureSkipVerify(wsNoSSLVerify),
	}
	if wsURL != "" && wsUsername != "" {
		password, err := GetPassword(wsUsername + " at " + wsURL)
		if err != nil {
			return nil, "", err
		}
		driverOpts = append(driverOpts, transport.WithBasicAuth(wsUsername, password))
	}

	driver := transport.New(p, driverOpts...)
	s := session.New(driver, append([]session.Option{session.WithLogger(logger)}, opts...)...)
	if err := s.Start(); err != nil {
		return nil, "", err
	}
	return s, describe(driver), nil
}
