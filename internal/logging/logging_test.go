// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		want    zerolog.Level
		wantErr bool
	}{
		{"default", "", "", DefaultLevel, false},
		{"flag", "debug", "", zerolog.DebugLevel, false},
		{"flag wins", "warn", "trace", zerolog.WarnLevel, false},
		{"env", "", "ERROR", zerolog.ErrorLevel, false},
		{"invalid", "loud", "", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLevel, tt.env)
			got, err := ParseLevel(tt.flag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.flag, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.flag, got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Setenv(EnvNoColor, "1")
	var buf bytes.Buffer

	logger, err := Init("mistctl", &buf, "info")
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("port", "/dev/ttyUSB0").Msg("opened")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message written at info level")
	}
	for _, want := range []string{"opened", "port=/dev/ttyUSB0", "app=mistctl"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color codes written with MISTCTL_LOG_NOCOLOR set")
	}

	if _, err := Init("mistctl", &buf, "nope"); err == nil {
		t.Error("Init() accepted an invalid level")
	}
}

func TestTestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Test(&buf)
	l.Info().Msg("quiet")
	l.Warn().Msg("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("output = %q", buf.String())
	}
}
