// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package abi

import (
	"errors"
	"strings"
	"testing"
)

func TestSampleWireLayout(t *testing.T) {
	t.Parallel()

	slot := make([]byte, SampleSize)
	Sample{
		Type:       SampleTaskPop,
		TaskIndex:  0x0102,
		StackDepth: 0x0304,
		CPU:        0x05,
		Timestamp:  0x0706050403020100,
	}.Put(slot)

	want := []byte{
		0x02, 0x00, // type
		0x02, 0x01, // task_index
		0x04, 0x03, // stack_depth
		0x05,       // cpu
		0x00,       // pad
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, // timestamp
	}
	for index := range want {
		if slot[index] != want[index] {
			t.Fatalf("byte %d: got %#x, want %#x (slot %x)", index, slot[index], want[index], slot)
		}
	}

	decoded := DecodeSample(slot)
	if decoded.Type != SampleTaskPop || decoded.TaskIndex != 0x0102 || decoded.StackDepth != 0x0304 ||
		decoded.CPU != 0x05 || decoded.Timestamp != 0x0706050403020100 {
		t.Errorf("DecodeSample: got %+v", decoded)
	}
}

func TestInfoHeaderLayout(t *testing.T) {
	t.Parallel()

	region := make([]byte, 4096)
	writer, err := NewInfoWriter(region)
	if err != nil {
		t.Fatalf("NewInfoWriter: %v", err)
	}
	writer.Init(1234, 5678)
	writer.Publish(42)

	words := []struct {
		offset int
		want   uint32
	}{
		{0, Version},
		{4, 1234},
		{8, 5678},
		{12, SampleSize},
		{16, 42},
	}
	for _, word := range words {
		got := uint32(region[word.offset]) | uint32(region[word.offset+1])<<8 |
			uint32(region[word.offset+2])<<16 | uint32(region[word.offset+3])<<24
		if got != word.want {
			t.Errorf("offset %d: got %#x, want %#x", word.offset, got, word.want)
		}
	}

	view, err := NewInfoView(region)
	if err != nil {
		t.Fatalf("NewInfoView: %v", err)
	}
	if err := view.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if view.PID() != 1234 || view.TID() != 5678 || view.Written() != 42 {
		t.Errorf("view: pid=%d tid=%d written=%d", view.PID(), view.TID(), view.Written())
	}
}

func TestInfoValidateRejectsForeignLayouts(t *testing.T) {
	t.Parallel()

	region := make([]byte, InfoSize)
	view, err := NewInfoView(region)
	if err != nil {
		t.Fatalf("NewInfoView: %v", err)
	}
	if err := view.Validate(); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("zeroed header: got %v, want ErrVersionMismatch", err)
	}

	writer, _ := NewInfoWriter(region)
	writer.Init(1, 1)
	region[infoSampleSizeOffset] = 24
	if err := view.Validate(); !errors.Is(err, ErrSampleSize) {
		t.Errorf("wrong sample size: got %v, want ErrSampleSize", err)
	}
}

func TestNewInfoViewShortRegion(t *testing.T) {
	t.Parallel()

	if _, err := NewInfoView(make([]byte, InfoSize-1)); !errors.Is(err, ErrShortRegion) {
		t.Errorf("got %v, want ErrShortRegion", err)
	}
}

func TestRecordPublication(t *testing.T) {
	t.Parallel()

	record := make([]byte, TaskRecordSize)
	if header := LoadRecordHeader(record); header.Type != RecordEnd || header.Size != 0 {
		t.Fatalf("zeroed record: got %+v", header)
	}

	// A type written without a size is not yet a record.
	record[0] = byte(RecordTaskDescriptor)
	if header := LoadRecordHeader(record); header.Size != 0 || header.Type != RecordEnd {
		t.Errorf("unpublished record: got %+v, want zero header", header)
	}

	PutTaskDescriptor(record[RecordHeaderSize:], 3, "swap-buffers")
	PublishRecord(record, RecordTaskDescriptor, TaskRecordSize)

	header := LoadRecordHeader(record)
	if header.Type != RecordTaskDescriptor || header.Size != TaskRecordSize {
		t.Errorf("published record: got %+v", header)
	}
	// Size lives in the upper half of the second word.
	if record[4] != 0 || record[5] != 0 || record[6] != TaskRecordSize || record[7] != 0 {
		t.Errorf("header bytes 4..8: got %x", record[4:8])
	}

	index, name := DecodeTaskDescriptor(record[RecordHeaderSize:])
	if index != 3 || name != "swap-buffers" {
		t.Errorf("DecodeTaskDescriptor: got (%d, %q)", index, name)
	}
}

func TestTaskDescriptorNameTruncation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"fits", "draw", "draw"},
		{"exact", strings.Repeat("a", TaskNameSize), strings.Repeat("a", TaskNameSize)},
		{"long ascii", strings.Repeat("b", TaskNameSize+10), strings.Repeat("b", TaskNameSize)},
		// 61 ASCII bytes followed by a two-byte rune: the rune would
		// straddle the field end, so it is dropped whole.
		{"rune boundary", strings.Repeat("c", TaskNameSize-1) + "é", strings.Repeat("c", TaskNameSize-1)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			payload := make([]byte, TaskDescriptorSize)
			for index := range payload {
				payload[index] = 0xff
			}
			PutTaskDescriptor(payload, 1, test.input)
			_, got := DecodeTaskDescriptor(payload)
			if got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}
