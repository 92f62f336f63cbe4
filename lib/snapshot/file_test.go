// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package snapshot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/ancillary"
)

func sampleDocument() *Document {
	document := Build([]Source{{
		PID: 41, TID: 42,
		Tasks:   []ancillary.TaskEntry{{Index: 1, LocalIndex: 1, Name: "frame"}},
		Samples: []abi.Sample{push(1, 0, 1000), pop(1, 0, 3000)},
	}}, fakeNames{"41": "app", "41/42": "render"})
	document.Skipped = []SkippedThread{{PID: 41, TID: 43, Reason: "pause timed out"}}
	return document
}

func TestEncodeJSONIsThreadArray(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	if err := Encode(&buffer, sampleDocument(), FormatJSON, false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var threads []map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &threads); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buffer.String())
	}
	if len(threads) != 1 {
		t.Fatalf("got %d threads", len(threads))
	}
	thread := threads[0]
	for _, key := range []string{"type", "pid", "tid", "name", "thread_name", "exited", "ancillary", "samples"} {
		if _, ok := thread[key]; !ok {
			t.Errorf("thread object lacks %q", key)
		}
	}
	if _, ok := thread["unnamed"]; ok {
		t.Error("unnamed present on a named thread")
	}
	samples := thread["samples"].([]any)
	last := samples[1].(map[string]any)
	if last["type"] != "pop" || last["timestamp"].(float64) != 2e-6 {
		t.Errorf("last sample: %v", last)
	}
}

func TestEncodeEmptyJSON(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	if err := Encode(&buffer, Build(nil, fakeNames{}), FormatJSON, false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := bytes.TrimSpace(buffer.Bytes()); string(got) != "[]" {
		t.Errorf("got %q, want []", got)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		options WriteOptions
		magic   []byte
		skipped bool
	}{
		{"json", "capture.json", WriteOptions{Format: FormatJSON, Indent: true}, []byte("["), false},
		{"json-zstd", "capture.json.zst", WriteOptions{Format: FormatJSON, Compression: CompressionAuto}, zstdMagic, false},
		{"cbor-lz4", "capture.cbor", WriteOptions{Format: FormatCBOR, Compression: CompressionLZ4}, lz4Magic, true},
		{"cbor", "capture.cbor", WriteOptions{Format: FormatCBOR, Compression: CompressionNone}, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), test.file)
			original := sampleDocument()
			if _, err := WriteFile(path, original, test.options); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading back: %v", err)
			}
			if test.magic != nil && !bytes.HasPrefix(raw, test.magic) {
				t.Errorf("file starts with % x", raw[:4])
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temporary file left behind: %v", err)
			}

			loaded, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(loaded.Threads) != 1 {
				t.Fatalf("got %d threads", len(loaded.Threads))
			}
			thread := loaded.Threads[0]
			if thread.Name != "app" || thread.ThreadName != "render" || len(thread.Samples) != 2 {
				t.Errorf("thread: %+v", thread)
			}
			if thread.Samples[1].Timestamp != original.Threads[0].Samples[1].Timestamp {
				t.Errorf("timestamp: got %v", thread.Samples[1].Timestamp)
			}
			if test.skipped != (len(loaded.Skipped) == 1) {
				t.Errorf("skipped: got %+v", loaded.Skipped)
			}
		})
	}
}

func TestDigestIgnoresCompression(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	plain, err := WriteFile(filepath.Join(directory, "a.cbor"), sampleDocument(), WriteOptions{Format: FormatCBOR})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	compressed, err := WriteFile(filepath.Join(directory, "b.cbor.zst"), sampleDocument(), WriteOptions{Format: FormatCBOR})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if plain != compressed {
		t.Errorf("digests differ: %s vs %s", plain, compressed)
	}
	if len(plain.String()) != 64 {
		t.Errorf("digest string: %q", plain.String())
	}
}

func TestReadFileRejectsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for empty capture")
	}
}

func TestParseCompressionAndFormat(t *testing.T) {
	t.Parallel()

	if got, err := ParseCompression("ZSTD"); err != nil || got != CompressionZstd {
		t.Errorf("ParseCompression(ZSTD): %v, %v", got, err)
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip): expected error")
	}
	if got := CompressionAuto.resolve("out.lz4"); got != CompressionLZ4 {
		t.Errorf("resolve(out.lz4): %v", got)
	}
	if got := CompressionAuto.resolve("out.json"); got != CompressionNone {
		t.Errorf("resolve(out.json): %v", got)
	}
	if got, err := ParseFormat("cbor"); err != nil || got != FormatCBOR {
		t.Errorf("ParseFormat(cbor): %v, %v", got, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml): expected error")
	}
}
