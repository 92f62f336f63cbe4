// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ring

import (
	"fmt"
	"math/bits"

	"github.com/bureau-foundation/ut/lib/abi"
)

// DefaultCapacity is the ring size in bytes for each thread: 2 MiB,
// or 131072 samples.
const DefaultCapacity = 2 << 20

// ValidateCapacity checks that capacity is a power of two holding at
// least two samples.
func ValidateCapacity(capacity int) error {
	if capacity < 2*abi.SampleSize {
		return fmt.Errorf("ring: capacity %d is smaller than two samples", capacity)
	}
	if bits.OnesCount(uint(capacity)) != 1 {
		return fmt.Errorf("ring: capacity %d is not a power of two", capacity)
	}
	return nil
}

// Writer appends samples to a ring. Only the owning thread may call
// its methods.
type Writer struct {
	info    *abi.InfoWriter
	data    []byte
	mask    uint32
	written uint32
}

// NewWriter wraps a ring of len(data) bytes whose header is info. The
// header must already be initialized; appends continue from its
// current count.
func NewWriter(info *abi.InfoWriter, data []byte) (*Writer, error) {
	if err := ValidateCapacity(len(data)); err != nil {
		return nil, err
	}
	return &Writer{
		info:    info,
		data:    data,
		mask:    uint32(len(data) - 1),
		written: info.Written(),
	}, nil
}

// Append writes sample into the next slot and publishes it.
func (w *Writer) Append(sample abi.Sample) {
	offset := (w.written * abi.SampleSize) & w.mask
	sample.Put(w.data[offset : offset+abi.SampleSize])
	w.written++
	w.info.Publish(w.written)
}

// Written returns the number of samples appended over the ring's
// lifetime.
func (w *Writer) Written() uint32 { return w.written }

// Slots returns how many samples fit in the ring.
func (w *Writer) Slots() int { return len(w.data) / abi.SampleSize }

// Window describes which slots of a ring hold trustworthy samples.
type Window struct {
	// Tail is the slot holding the oldest sample to read.
	Tail uint32
	// Count is the number of consecutive slots, starting at Tail and
	// wrapping, to read.
	Count uint32
	// Wrapped reports that older samples were overwritten.
	Wrapped bool
}

// WindowFor computes the readable window for a ring of slots slots
// after written appends. An unwrapped ring yields every sample. A
// wrapped ring yields slots-1 samples, starting one past the slot the
// writer will overwrite next.
func WindowFor(written, slots uint32) Window {
	if written <= slots {
		return Window{Tail: 0, Count: written}
	}
	return Window{
		Tail:    (written - slots + 1) % slots,
		Count:   slots - 1,
		Wrapped: true,
	}
}

// Reconstruct copies the trustworthy samples out of a ring in write
// order. info is the ring's header and data the slot area that follows
// the header page. The writer must be stopped, or have exited, for the
// result to be a consistent snapshot.
func Reconstruct(info *abi.InfoView, data []byte) ([]abi.Sample, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCapacity(len(data)); err != nil {
		return nil, err
	}

	slots := uint32(len(data) / abi.SampleSize)
	window := WindowFor(info.Written(), slots)

	samples := make([]abi.Sample, 0, window.Count)
	for step := uint32(0); step < window.Count; step++ {
		slot := (window.Tail + step) % slots
		offset := slot * abi.SampleSize
		samples = append(samples, abi.DecodeSample(data[offset:offset+abi.SampleSize]))
	}
	return samples, nil
}
