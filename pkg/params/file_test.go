// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadXML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<SerialParameters>
  <Name>greenhouse</Name>
  <Baudrate>38400</Baudrate>
  <Port>/dev/ttyUSB1</Port>
  <Databits>7</Databits>
  <Parity>even</Parity>
  <FlowcontrolIn>rts/cts in</FlowcontrolIn>
  <FlowcontrolOut>rts/cts out</FlowcontrolOut>
  <Comment><Nested>ignored</Nested></Comment>
</SerialParameters>`

	p, err := LoadXML(strings.NewReader(doc), Default("x"))
	if err != nil {
		t.Fatalf("LoadXML() error: %v", err)
	}
	if p.Name() != "greenhouse" || p.Target() != "/dev/ttyUSB1" || p.BaudRate() != Baud38400 {
		t.Errorf("got %s (%s)", p, p.Name())
	}
	if p.DataBits() != DataBits7 || p.Parity() != ParityEven {
		t.Errorf("framing = %v %v", p.DataBits(), p.Parity())
	}
	if p.FlowControl() != FlowRTSCTSIn|FlowRTSCTSOut {
		t.Errorf("FlowControl() = %d", p.FlowControl())
	}
	if p.ReceiveTimeout() != DefaultReceiveTimeout {
		t.Errorf("ReceiveTimeout() = %v, base value should be kept", p.ReceiveTimeout())
	}
}

func TestLoadXML_WrongRootKeepsInput(t *testing.T) {
	base := Default("x").WithTarget("COM1")
	doc := `<ModbusParameters><Baudrate>19200</Baudrate></ModbusParameters>`

	p, err := LoadXML(strings.NewReader(doc), base)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("LoadXML() error = %v, want *ConfigurationError", err)
	}
	if p != base {
		t.Errorf("parameters changed on error: %+v", p)
	}
}

func TestLoadXML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"bad baud", `<SerialParameters><Baudrate>123</Baudrate></SerialParameters>`},
		{"bad parity", `<SerialParameters><Parity>sometimes</Parity></SerialParameters>`},
		{"out mode as in", `<SerialParameters><FlowcontrolIn>xon/xoff out</FlowcontrolIn></SerialParameters>`},
		{"unterminated", `<SerialParameters><Name>a</Name>`},
	}

	base := Default("x")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadXML(strings.NewReader(tt.doc), base)
			if err == nil {
				t.Fatal("LoadXML() should fail")
			}
			if p != base {
				t.Errorf("parameters changed on error: %+v", p)
			}
		})
	}
}

func TestLoadXML_DataBitsLegacy(t *testing.T) {
	doc := `<SerialParameters><Databits>nine</Databits></SerialParameters>`
	base, _ := NewBuilder("x").DataBits(5).Build()
	p, err := LoadXML(strings.NewReader(doc), base)
	if err != nil {
		t.Fatalf("LoadXML() error: %v", err)
	}
	if p.DataBits() != DataBits8 {
		t.Errorf("DataBits() = %v, want 8", p.DataBits())
	}
}

func TestMarshalXML_RoundTrip(t *testing.T) {
	orig, err := NewBuilder("loop").
		Target("/dev/ttyAMA0").
		BaudRate(4800).
		DataBits(6).
		Parity(ParitySpace).
		FlowControlOut(FlowXonXoffOut).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(orig); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := LoadXML(&buf, Default(""))
	if err != nil {
		t.Fatalf("LoadXML() error: %v", err)
	}
	if got != orig {
		t.Errorf("round trip = %+v, want %+v", got, orig)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"link.toml": `
name = "field"
port = "/dev/ttyUSB2"
baud_rate = 57600
parity = "odd"
stop_bits = "2"
flow_control_in = "xon/xoff in"
echo = true
timeout_ms = 0
`,
		"link.yaml": `
name: field
port: /dev/ttyUSB2
baud_rate: 57600
parity: odd
stop_bits: "2"
flow_control_in: xon/xoff in
echo: true
timeout_ms: 0
`,
		"link.xml": `<SerialParameters>
<Name>field</Name><Port>/dev/ttyUSB2</Port><Baudrate>57600</Baudrate><Parity>odd</Parity>
<FlowcontrolIn>xon/xoff in</FlowcontrolIn>
</SerialParameters>`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}

			p, err := LoadFile(path, Default("x"))
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if p.Name() != "field" || p.Target() != "/dev/ttyUSB2" || p.BaudRate() != Baud57600 {
				t.Errorf("got %s (%s)", p, p.Name())
			}
			if p.Parity() != ParityOdd || p.FlowControlIn() != FlowXonXoffIn {
				t.Errorf("parity=%v flow=%v", p.Parity(), p.FlowControlIn())
			}
			if filepath.Ext(name) != ".xml" {
				if p.StopBits() != StopBits2 || !p.Echo() || p.ReceiveTimeout() != 0 {
					t.Errorf("stop=%v echo=%v timeout=%v", p.StopBits(), p.Echo(), p.ReceiveTimeout())
				}
			}
		})
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link.ini")
	if err := os.WriteFile(path, []byte("port=COM1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, Default("x")); err == nil {
		t.Error("LoadFile() should reject .ini")
	}
}

func TestDocument_ApplyKeepsUnsetFields(t *testing.T) {
	base, _ := NewBuilder("x").BaudRate(1200).ReceiveTimeout(3 * time.Second).Build()
	p, err := Document{Port: "COM9"}.Apply(base)
	if err != nil {
		t.Fatal(err)
	}
	if p.BaudRate() != Baud1200 || p.ReceiveTimeout() != 3*time.Second || p.Target() != "COM9" {
		t.Errorf("got %s timeout=%v", p, p.ReceiveTimeout())
	}
}
