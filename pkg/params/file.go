// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Document is the TOML/YAML form of a parameters file.
// Empty fields leave the base value untouched.
type Document struct {
	Name           string `toml:"name" yaml:"name"`
	Port           string `toml:"port" yaml:"port"`
	BaudRate       int    `toml:"baud_rate" yaml:"baud_rate"`
	DataBits       string `toml:"data_bits" yaml:"data_bits"`
	StopBits       string `toml:"stop_bits" yaml:"stop_bits"`
	Parity         string `toml:"parity" yaml:"parity"`
	FlowControlIn  string `toml:"flow_control_in" yaml:"flow_control_in"`
	FlowControlOut string `toml:"flow_control_out" yaml:"flow_control_out"`
	Echo           *bool  `toml:"echo" yaml:"echo"`
	TimeoutMs      *int   `toml:"timeout_ms" yaml:"timeout_ms"`
}

// Apply layers d over base
func (d Document) Apply(base Parameters) (Parameters, error) {
	b := base.Builder()
	if d.Name != "" {
		b.Name(d.Name)
	}
	if d.Port != "" {
		b.Target(d.Port)
	}
	if d.BaudRate != 0 {
		b.BaudRate(d.BaudRate)
	}
	if d.DataBits != "" {
		b.Set("databits", d.DataBits)
	}
	if d.StopBits != "" {
		b.Set("stopbits", d.StopBits)
	}
	if d.Parity != "" {
		b.Set("parity", d.Parity)
	}
	if d.FlowControlIn != "" {
		b.Set("flowcontrolin", d.FlowControlIn)
	}
	if d.FlowControlOut != "" {
		b.Set("flowcontrolout", d.FlowControlOut)
	}
	if d.Echo != nil {
		b.Echo(*d.Echo)
	}
	if d.TimeoutMs != nil {
		b.ReceiveTimeout(time.Duration(*d.TimeoutMs) * time.Millisecond)
	}
	return b.buildOr(base)
}

// DecodeTOML parses a TOML parameters document
func DecodeTOML(data string) (Document, error) {
	var doc Document
	if _, err := toml.Decode(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return doc, nil
}

// DecodeYAML parses a YAML parameters document
func DecodeYAML(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc, nil
}

// LoadFile layers the parameters file at path over base.
// The format is chosen by extension: .xml, .toml, .yaml or .yml.
func LoadFile(path string, base Parameters) (Parameters, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xml" {
		return LoadXMLFile(path, base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read parameters file: %w", err)
	}

	var doc Document
	switch ext {
	case ".toml":
		doc, err = DecodeTOML(string(data))
	case ".yaml", ".yml":
		doc, err = DecodeYAML(data)
	default:
		return base, &ConfigurationError{Field: "file", Value: path, Reason: "unsupported extension"}
	}
	if err != nil {
		return base, err
	}
	return doc.Apply(base)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
