// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ancillary

import (
	"github.com/bureau-foundation/ut/lib/abi"
)

// TaskEntry is a task descriptor read back from a chain.
type TaskEntry struct {
	// Index is the display index: 1 for the first descriptor found in
	// the chain, counting up in publication order.
	Index uint16

	// LocalIndex is the index the producer stored in the record, the
	// value its samples carry.
	LocalIndex uint16

	Name string
}

// Scan walks blocks in chain order and returns every published task
// descriptor. Within a block it stops at the first record whose size
// or type is zero, or that would run past the block end. Records of
// unknown type are skipped by their size.
func Scan(blocks [][]byte) []TaskEntry {
	var entries []TaskEntry
	display := uint16(1)
	for _, data := range blocks {
		offset := 0
		for offset+abi.RecordHeaderSize <= len(data) {
			header := abi.LoadRecordHeader(data[offset:])
			if header.Size == 0 || header.Type == abi.RecordEnd {
				break
			}
			size := int(header.Size)
			if size < abi.RecordHeaderSize || offset+size > len(data) {
				break
			}

			if header.Type == abi.RecordTaskDescriptor && size >= abi.TaskRecordSize {
				local, name := abi.DecodeTaskDescriptor(data[offset+abi.RecordHeaderSize : offset+size])
				entries = append(entries, TaskEntry{Index: display, LocalIndex: local, Name: name})
				display++
			}
			offset += alignUp(size, abi.RecordAlignment)
		}
	}
	return entries
}
