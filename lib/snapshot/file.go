// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package snapshot

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ut/lib/codec"
)

// Stdout is the output path that means standard output.
const Stdout = "-"

// Frame magic numbers, little-endian on the wire.
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Digest is the BLAKE3-256 hash of an encoded document, before
// compression.
type Digest [32]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Encode serializes document to w. JSON output is the thread array;
// indent pretty-prints it.
func Encode(w io.Writer, document *Document, format Format, indent bool) error {
	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		if indent {
			encoder.SetIndent("", "  ")
		}
		threads := document.Threads
		if threads == nil {
			threads = []Thread{}
		}
		return encoder.Encode(threads)
	case FormatCBOR:
		return codec.NewEncoder(w).Encode(document)
	default:
		return fmt.Errorf("unknown capture format %q", format)
	}
}

// Decode parses an uncompressed document, telling JSON from CBOR by
// the first non-space byte. A JSON capture has no skipped list or
// epoch; those fields stay zero.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var threads []Thread
		if err := json.Unmarshal(trimmed, &threads); err != nil {
			return nil, fmt.Errorf("decoding JSON capture: %w", err)
		}
		return &Document{Threads: threads}, nil
	}
	var document Document
	if err := codec.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("decoding CBOR capture: %w", err)
	}
	return &document, nil
}

// WriteOptions controls WriteFile.
type WriteOptions struct {
	Format      Format
	Compression Compression
	Indent      bool
}

// WriteFile encodes document to path, or to standard output when path
// is [Stdout]. The file is written to a temporary name and renamed
// into place so a reader never sees half a capture.
func WriteFile(path string, document *Document, options WriteOptions) (Digest, error) {
	var encoded bytes.Buffer
	if err := Encode(&encoded, document, options.Format, options.Indent); err != nil {
		return Digest{}, err
	}
	digest := Digest(blake3.Sum256(encoded.Bytes()))
	compression := options.Compression.resolve(path)

	if path == Stdout {
		writer := bufio.NewWriter(os.Stdout)
		if err := compress(writer, encoded.Bytes(), compression); err != nil {
			return Digest{}, err
		}
		return digest, writer.Flush()
	}

	temporary := path + ".tmp"
	file, err := os.Create(temporary)
	if err != nil {
		return Digest{}, fmt.Errorf("creating %s: %w", temporary, err)
	}
	writer := bufio.NewWriter(file)
	if err := compress(writer, encoded.Bytes(), compression); err != nil {
		file.Close()
		os.Remove(temporary)
		return Digest{}, err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(temporary)
		return Digest{}, fmt.Errorf("writing %s: %w", temporary, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporary)
		return Digest{}, fmt.Errorf("closing %s: %w", temporary, err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return Digest{}, fmt.Errorf("renaming capture into place: %w", err)
	}
	return digest, nil
}

// ReadFile loads a capture written by WriteFile, in any format and
// compression.
func ReadFile(path string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if path == Stdout {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	data, err = decompress(data)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func compress(w io.Writer, data []byte, compression Compression) error {
	switch compression {
	case CompressionNone:
		_, err := w.Write(data)
		return err
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		if _, err := encoder.Write(data); err != nil {
			encoder.Close()
			return fmt.Errorf("zstd compression: %w", err)
		}
		return encoder.Close()
	case CompressionLZ4:
		encoder := lz4.NewWriter(w)
		if _, err := encoder.Write(data); err != nil {
			encoder.Close()
			return fmt.Errorf("lz4 compression: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown compression %q", compression)
	}
}

func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		result, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		return result, nil
	case bytes.HasPrefix(data, lz4Magic):
		result, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		return result, nil
	case len(data) == 0:
		return nil, errors.New("capture is empty")
	default:
		return data, nil
	}
}
