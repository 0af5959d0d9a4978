// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/mavlink-bridge/lib/config"
)

// newLogger builds the root logger. With format auto, stderr that is a
// terminal gets the text handler and anything else (journald, pipes)
// gets JSON.
func newLogger(settings config.LoggingConfig, output io.Writer, terminal bool) (*slog.Logger, error) {
	level, err := config.ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	useText := terminal
	switch settings.Format {
	case "text":
		useText = true
	case "json":
		useText = false
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(output, options)
	} else {
		handler = slog.NewJSONHandler(output, options)
	}
	return slog.New(handler), nil
}

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
