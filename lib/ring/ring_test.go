// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ring

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/ut/lib/abi"
)

// newTestRing builds a header page and a ring of slots samples in one
// heap region, laid out the way a shared ring region is.
func newTestRing(t *testing.T, slots int) (*Writer, *abi.InfoView, []byte) {
	t.Helper()

	headerSize := 64
	region := make([]byte, headerSize+slots*abi.SampleSize)
	info, err := abi.NewInfoWriter(region)
	if err != nil {
		t.Fatalf("NewInfoWriter: %v", err)
	}
	info.Init(100, 200)

	data := region[headerSize:]
	writer, err := NewWriter(info, data)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return writer, &info.InfoView, data
}

func appendSequence(writer *Writer, count int) {
	for index := 0; index < count; index++ {
		writer.Append(abi.Sample{
			Type:      abi.SampleTaskPush,
			TaskIndex: uint16(index % 7),
			Timestamp: uint64(index),
		})
	}
}

func TestReconstructUnwrapped(t *testing.T) {
	t.Parallel()

	for _, count := range []int{0, 1, 5, 16} {
		writer, info, data := newTestRing(t, 16)
		appendSequence(writer, count)

		samples, err := Reconstruct(info, data)
		if err != nil {
			t.Fatalf("count %d: Reconstruct: %v", count, err)
		}
		if len(samples) != count {
			t.Fatalf("count %d: got %d samples", count, len(samples))
		}
		for index, sample := range samples {
			if sample.Timestamp != uint64(index) {
				t.Errorf("count %d: sample %d has timestamp %d", count, index, sample.Timestamp)
			}
		}
	}
}

func TestReconstructWrappedSkipsOldestSlot(t *testing.T) {
	t.Parallel()

	for _, count := range []int{17, 31, 32, 33, 100} {
		writer, info, data := newTestRing(t, 16)
		appendSequence(writer, count)

		samples, err := Reconstruct(info, data)
		if err != nil {
			t.Fatalf("count %d: Reconstruct: %v", count, err)
		}
		if len(samples) != 15 {
			t.Fatalf("count %d: got %d samples, want 15", count, len(samples))
		}
		first := uint64(count - 15)
		for index, sample := range samples {
			if sample.Timestamp != first+uint64(index) {
				t.Errorf("count %d: sample %d has timestamp %d, want %d",
					count, index, sample.Timestamp, first+uint64(index))
			}
		}
	}
}

func TestReconstructFourSlotsSixAppends(t *testing.T) {
	t.Parallel()

	writer, info, data := newTestRing(t, 4)
	appendSequence(writer, 6)

	samples, err := Reconstruct(info, data)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	var got []uint64
	for _, sample := range samples {
		got = append(got, sample.Timestamp)
	}
	want := []uint64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestReconstructIgnoresSlotAtCursor(t *testing.T) {
	t.Parallel()

	writer, info, data := newTestRing(t, 8)
	appendSequence(writer, 3)

	// Simulate a writer stopped halfway through the fourth append:
	// the slot is partly filled but the count was never published.
	abi.Sample{Type: abi.SampleTaskPop, Timestamp: 999}.Put(data[3*abi.SampleSize:])

	samples, err := Reconstruct(info, data)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	for _, sample := range samples {
		if sample.Timestamp == 999 {
			t.Error("unpublished slot was returned")
		}
	}
}

func TestWindowFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		written, slots uint32
		want           Window
	}{
		{0, 4, Window{Tail: 0, Count: 0}},
		{4, 4, Window{Tail: 0, Count: 4}},
		{5, 4, Window{Tail: 2, Count: 3, Wrapped: true}},
		{6, 4, Window{Tail: 3, Count: 3, Wrapped: true}},
		{7, 4, Window{Tail: 0, Count: 3, Wrapped: true}},
	}
	for _, test := range tests {
		if got := WindowFor(test.written, test.slots); got != test.want {
			t.Errorf("WindowFor(%d, %d): got %+v, want %+v", test.written, test.slots, got, test.want)
		}
	}
}

func TestReconstructRejectsForeignHeader(t *testing.T) {
	t.Parallel()

	region := make([]byte, 64+16*abi.SampleSize)
	info, err := abi.NewInfoView(region)
	if err != nil {
		t.Fatalf("NewInfoView: %v", err)
	}
	if _, err := Reconstruct(info, region[64:]); !errors.Is(err, abi.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
}

func TestValidateCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{32, 64, DefaultCapacity} {
		if err := ValidateCapacity(capacity); err != nil {
			t.Errorf("ValidateCapacity(%d): %v", capacity, err)
		}
	}
	for _, capacity := range []int{0, 16, 48, 1000} {
		if err := ValidateCapacity(capacity); err == nil {
			t.Errorf("ValidateCapacity(%d): expected error", capacity)
		}
	}
}
