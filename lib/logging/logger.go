// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects the handler.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string

	// Format picks the handler. Empty means auto.
	Format Format

	// Writer receives log lines. Nil means standard error.
	Writer io.Writer
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New creates a logger. Auto format uses slog.TextHandler when the
// writer is a terminal and slog.JSONHandler otherwise.
func New(options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	writer := options.Writer
	if writer == nil {
		writer = os.Stderr
	}

	format := options.Format
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if isTerminal(writer) {
			format = FormatText
		}
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(writer, handlerOptions)
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, handlerOptions)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(handler), nil
}

// NewCommandLogger returns an info-level logger on standard error in
// the auto format, for use before configuration is loaded.
func NewCommandLogger() *slog.Logger {
	logger, _ := New(Options{})
	return logger
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
