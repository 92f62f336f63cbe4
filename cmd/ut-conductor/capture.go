// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package main

import (
	"log/slog"

	"github.com/bureau-foundation/ut/lib/collector"
	"github.com/bureau-foundation/ut/lib/config"
	"github.com/bureau-foundation/ut/lib/snapshot"
)

// captureWriter turns a capture result into a file.
type captureWriter struct {
	path    string
	options snapshot.WriteOptions
	names   snapshot.Namer
	logger  *slog.Logger
}

func newCaptureWriter(output config.OutputConfig, names snapshot.Namer, logger *slog.Logger) (*captureWriter, error) {
	format, err := snapshot.ParseFormat(output.Format)
	if err != nil {
		return nil, err
	}
	compression, err := snapshot.ParseCompression(output.Compression)
	if err != nil {
		return nil, err
	}
	return &captureWriter{
		path: output.Path,
		options: snapshot.WriteOptions{
			Format:      format,
			Compression: compression,
			Indent:      output.Indent,
		},
		names:  names,
		logger: logger,
	}, nil
}

// write runs while every captured thread is stopped.
func (w *captureWriter) write(result collector.Result) error {
	if err := result.SkippedErr(); err != nil {
		w.logger.Warn("partial capture", "skipped", len(result.Skipped), "error", err)
	}
	sources, skipped := snapshot.FromCapture(result)

	document := snapshot.Build(sources, w.names)
	document.Skipped = skipped

	digest, err := snapshot.WriteFile(w.path, document, w.options)
	if err != nil {
		return err
	}
	w.logger.Info("capture written",
		"path", w.path,
		"threads", len(document.Threads),
		"skipped", len(skipped),
		"blake3", digest.String(),
	)
	return nil
}
