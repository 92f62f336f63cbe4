// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a document serialization.
type Format string

const (
	// FormatJSON writes the bare array of threads.
	FormatJSON Format = "json"

	// FormatCBOR writes the whole document, skipped threads included,
	// with deterministic encoding.
	FormatCBOR Format = "cbor"
)

// ParseFormat converts a configuration string into a Format.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(value)) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unknown capture format %q (expected json or cbor)", value)
	}
}

// Compression is a frame wrapped around an encoded document.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"

	// CompressionAuto picks from the output path's extension.
	CompressionAuto Compression = "auto"
)

// ParseCompression converts a configuration string into a Compression.
func ParseCompression(value string) (Compression, error) {
	switch Compression(strings.ToLower(value)) {
	case CompressionAuto, "":
		return CompressionAuto, nil
	case CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, "zst":
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown compression %q (expected none, zstd, lz4, or auto)", value)
	}
}

// resolve turns CompressionAuto into a concrete choice for path.
func (c Compression) resolve(path string) Compression {
	if c != CompressionAuto && c != "" {
		return c
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
