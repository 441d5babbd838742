// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures the zerolog logger shared by the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment overrides
const (
	EnvLevel   = "MISTCTL_LOG_LEVEL"
	EnvNoColor = "MISTCTL_LOG_NOCOLOR"
)

// DefaultLevel is used when neither a flag nor the environment sets one
const DefaultLevel = zerolog.InfoLevel

// Init builds a console logger on out for app and installs it as the global
// logger. level is a zerolog level name; an empty level falls back to the
// environment, then DefaultLevel.
func Init(app string, out io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor(),
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}

// ParseLevel resolves a level name, consulting MISTCTL_LOG_LEVEL when name
// is empty
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		name = os.Getenv(EnvLevel)
	}
	if name == "" {
		return DefaultLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
}

func noColor() bool {
	switch strings.ToLower(os.Getenv(EnvNoColor)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Test returns a logger for tests that discards output below warn level
func Test(out io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true}).Level(zerolog.WarnLevel)
}
