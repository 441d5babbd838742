// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// mistctl - SM100 irrigation controller client
//
// A CLI tool for monitoring and commanding SM100 irrigation and mist
// controllers over serial, TCP or WebSocket links.

package main

import (
	"os"

	"github.com/radicalsystems/mistctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
