// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/radicalsystems/mistctl/pkg/capture"
	"github.com/radicalsystems/mistctl/pkg/protocol"
)

func TestReplay(t *testing.T) {
	var file bytes.Buffer
	w, err := capture.NewWriter(&file, "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	w.OnSend(protocol.NewGetConfig())
	for _, frame := range []string{"<Ping />", `<SetZone Channel="7" Status="1" />`} {
		m, err := protocol.Decode([]byte(frame))
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", frame, err)
		}
		w.OnMessage(m)
	}
	w.OnDecodeError(&protocol.DecodeError{Raw: "<Bogus />", Reason: `unknown tag "Bogus"`})

	var out bytes.Buffer
	if err := replay(&out, &file); err != nil {
		t.Fatalf("replay() error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"/dev/ttyUSB0", "-> GET_CONFIG", "<- PING", "zone 7 ON", "DECODE ERROR", "Bogus", "4 records"} {
		if !strings.Contains(got, want) {
			t.Errorf("replay output missing %q:\n%s", want, got)
		}
	}
}

func TestReplayRejectsForeignFile(t *testing.T) {
	var out bytes.Buffer
	if err := replay(&out, strings.NewReader("<SerialParameters/>")); err == nil {
		t.Error("replay() accepted a non-capture file")
	}
}
