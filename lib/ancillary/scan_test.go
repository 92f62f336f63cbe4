// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ancillary

import (
	"testing"
	"unsafe"

	"github.com/bureau-foundation/ut/lib/abi"
)

func uintptrDiff(base, element *byte) uintptr {
	return uintptr(unsafe.Pointer(element)) - uintptr(unsafe.Pointer(base))
}

func putTask(block []byte, offset int, local uint16, name string) {
	record := block[offset : offset+abi.TaskRecordSize]
	abi.PutTaskDescriptor(record[abi.RecordHeaderSize:], local, name)
	abi.PublishRecord(record, abi.RecordTaskDescriptor, abi.TaskRecordSize)
}

func TestScanStopsAtUnpublishedRecord(t *testing.T) {
	t.Parallel()

	block := make([]byte, 4*abi.TaskRecordSize)
	putTask(block, 0, 1, "first")
	// Payload written but size never published.
	abi.PutTaskDescriptor(block[abi.TaskRecordSize+abi.RecordHeaderSize:], 2, "torn")
	putTask(block, 2*abi.TaskRecordSize, 3, "after-gap")

	entries := Scan([][]byte{block})
	if len(entries) != 1 || entries[0].Name != "first" {
		t.Errorf("got %+v, want only the first record", entries)
	}
}

func TestScanSkipsUnknownRecordTypes(t *testing.T) {
	t.Parallel()

	block := make([]byte, 256)
	abi.PublishRecord(block[0:24], abi.RecordType(99), 20)
	putTask(block, 24, 1, "known")

	entries := Scan([][]byte{block})
	if len(entries) != 1 || entries[0].Name != "known" || entries[0].Index != 1 {
		t.Errorf("got %+v", entries)
	}
}

func TestScanRejectsOverrunningRecord(t *testing.T) {
	t.Parallel()

	block := make([]byte, 64)
	abi.PublishRecord(block, abi.RecordTaskDescriptor, abi.TaskRecordSize)

	if entries := Scan([][]byte{block}); len(entries) != 0 {
		t.Errorf("got %+v from an overrunning record", entries)
	}
}

func TestScanNumbersAcrossBlocks(t *testing.T) {
	t.Parallel()

	first := make([]byte, abi.TaskRecordSize)
	second := make([]byte, 2*abi.TaskRecordSize)
	putTask(first, 0, 1, "one")
	putTask(second, 0, 2, "two")
	putTask(second, abi.TaskRecordSize, 3, "three")

	entries := Scan([][]byte{first, nil, second})
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	for index, entry := range entries {
		if entry.Index != uint16(index+1) {
			t.Errorf("entry %d: display index %d", index, entry.Index)
		}
	}
}
