// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package abi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"
	"unsafe"
)

// Version tags the layout in every info header. A reader that finds
// any other value must not interpret the region.
const Version uint32 = 0xf00baaa1

// Info header field offsets.
const (
	infoVersionOffset    = 0
	infoPIDOffset        = 4
	infoTIDOffset        = 8
	infoSampleSizeOffset = 12
	infoWrittenOffset    = 16

	// InfoSize is the number of meaningful bytes in the header. The
	// header occupies a full page so the ring that follows stays page
	// aligned.
	InfoSize = 20
)

// SampleSize is the size of every ring slot. All samples share it so
// overwriting the oldest slot never disturbs its neighbours.
const SampleSize = 16

// Ancillary record sizes.
const (
	RecordHeaderSize = 8

	// TaskNameSize is the fixed capacity of a task descriptor name.
	// Names are not NUL terminated when they fill the field.
	TaskNameSize = 62

	TaskDescriptorSize = 2 + TaskNameSize

	// TaskRecordSize is a complete task descriptor record, header
	// included.
	TaskRecordSize = RecordHeaderSize + TaskDescriptorSize

	// RecordAlignment applies to every record start.
	RecordAlignment = 8
)

// SampleType distinguishes task push and pop events.
type SampleType uint16

const (
	SampleTaskPush SampleType = 1
	SampleTaskPop  SampleType = 2
)

func (t SampleType) String() string {
	switch t {
	case SampleTaskPush:
		return "push"
	case SampleTaskPop:
		return "pop"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(t))
	}
}

// RecordType identifies an ancillary record payload. Zero marks the
// end of valid data in a block.
type RecordType uint32

const (
	RecordEnd            RecordType = 0
	RecordTaskDescriptor RecordType = 1
)

var (
	// ErrVersionMismatch means the info header carries a different
	// layout tag. The region was written by an incompatible build.
	ErrVersionMismatch = errors.New("abi: version mismatch")

	// ErrSampleSize means the header's sample size disagrees with
	// SampleSize even though the version matched.
	ErrSampleSize = errors.New("abi: sample size mismatch")

	// ErrShortRegion means a region is too small to hold the
	// structure being mapped over it.
	ErrShortRegion = errors.New("abi: region too small")
)

// Sample is the decoded form of one ring slot.
type Sample struct {
	Type       SampleType
	TaskIndex  uint16
	StackDepth uint16
	CPU        uint8
	Timestamp  uint64
}

// Put encodes the sample into the first SampleSize bytes of slot.
func (s Sample) Put(slot []byte) {
	_ = slot[SampleSize-1]
	binary.LittleEndian.PutUint16(slot[0:], uint16(s.Type))
	binary.LittleEndian.PutUint16(slot[2:], s.TaskIndex)
	binary.LittleEndian.PutUint16(slot[4:], s.StackDepth)
	slot[6] = s.CPU
	slot[7] = 0
	binary.LittleEndian.PutUint64(slot[8:], s.Timestamp)
}

// DecodeSample reads a sample from the first SampleSize bytes of slot.
func DecodeSample(slot []byte) Sample {
	_ = slot[SampleSize-1]
	return Sample{
		Type:       SampleType(binary.LittleEndian.Uint16(slot[0:])),
		TaskIndex:  binary.LittleEndian.Uint16(slot[2:]),
		StackDepth: binary.LittleEndian.Uint16(slot[4:]),
		CPU:        slot[6],
		Timestamp:  binary.LittleEndian.Uint64(slot[8:]),
	}
}

// InfoView is a read-only view of an info header.
type InfoView struct {
	header []byte
}

// NewInfoView wraps the start of a ring region.
func NewInfoView(region []byte) (*InfoView, error) {
	if len(region) < InfoSize {
		return nil, fmt.Errorf("%w: info header needs %d bytes, have %d", ErrShortRegion, InfoSize, len(region))
	}
	return &InfoView{header: region[:InfoSize:InfoSize]}, nil
}

func (v *InfoView) Version() uint32 {
	return binary.LittleEndian.Uint32(v.header[infoVersionOffset:])
}

func (v *InfoView) PID() uint32 {
	return binary.LittleEndian.Uint32(v.header[infoPIDOffset:])
}

func (v *InfoView) TID() uint32 {
	return binary.LittleEndian.Uint32(v.header[infoTIDOffset:])
}

func (v *InfoView) SampleSize() uint32 {
	return binary.LittleEndian.Uint32(v.header[infoSampleSizeOffset:])
}

// Written returns n_samples_written. The load synchronizes with the
// writer's store in [InfoWriter.Publish]: every slot below the
// returned count, except possibly the one the writer targets next,
// is complete.
func (v *InfoView) Written() uint32 {
	return atomic.LoadUint32(v.word(infoWrittenOffset))
}

// Validate checks the version tag and sample size.
func (v *InfoView) Validate() error {
	if version := v.Version(); version != Version {
		return fmt.Errorf("%w: header has %#x, expected %#x", ErrVersionMismatch, version, Version)
	}
	if size := v.SampleSize(); size != SampleSize {
		return fmt.Errorf("%w: header has %d, expected %d", ErrSampleSize, size, SampleSize)
	}
	return nil
}

func (v *InfoView) word(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&v.header[offset]))
}

// InfoWriter is the producer's view of its own info header.
type InfoWriter struct {
	InfoView
}

// NewInfoWriter wraps the start of a writable ring region.
func NewInfoWriter(region []byte) (*InfoWriter, error) {
	view, err := NewInfoView(region)
	if err != nil {
		return nil, err
	}
	return &InfoWriter{InfoView: *view}, nil
}

// Init fills the header for a fresh region. The count is published
// last so a reader never sees a non-zero count with a stale tag.
func (w *InfoWriter) Init(pid, tid uint32) {
	binary.LittleEndian.PutUint32(w.header[infoVersionOffset:], Version)
	binary.LittleEndian.PutUint32(w.header[infoPIDOffset:], pid)
	binary.LittleEndian.PutUint32(w.header[infoTIDOffset:], tid)
	binary.LittleEndian.PutUint32(w.header[infoSampleSizeOffset:], SampleSize)
	w.Publish(0)
}

// Publish stores a new n_samples_written value. Every byte written to
// the ring before this call is visible to a reader that loads the new
// value.
func (w *InfoWriter) Publish(written uint32) {
	atomic.StoreUint32(w.word(infoWrittenOffset), written)
}

// RecordHeader is the decoded header of an ancillary record.
type RecordHeader struct {
	Type RecordType
	Size uint16
}

// The pad and size fields share the second 32-bit word of a record
// header. On little-endian machines size is its upper half, which lets
// publication be a single aligned atomic store.
const recordSizeShift = 16

// PublishRecord writes a record header into record, which must already
// hold the payload. The type is written first; the size goes out last
// with an atomic store, making the record visible to readers.
func PublishRecord(record []byte, recordType RecordType, size uint16) {
	_ = record[RecordHeaderSize-1]
	binary.LittleEndian.PutUint32(record[0:], uint32(recordType))
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&record[4])), uint32(size)<<recordSizeShift)
}

// LoadRecordHeader reads a record header. The size is loaded first;
// a zero size means the record is not yet published and its type
// must not be trusted.
func LoadRecordHeader(record []byte) RecordHeader {
	_ = record[RecordHeaderSize-1]
	size := uint16(atomic.LoadUint32((*uint32)(unsafe.Pointer(&record[4]))) >> recordSizeShift)
	if size == 0 {
		return RecordHeader{}
	}
	return RecordHeader{
		Type: RecordType(binary.LittleEndian.Uint32(record[0:])),
		Size: size,
	}
}

// PutTaskDescriptor encodes a task descriptor payload. Names longer
// than TaskNameSize are cut at the last complete UTF-8 sequence that
// fits.
func PutTaskDescriptor(payload []byte, localIndex uint16, name string) {
	_ = payload[TaskDescriptorSize-1]
	binary.LittleEndian.PutUint16(payload[0:], localIndex)
	field := payload[2:TaskDescriptorSize]
	clear(field)
	copy(field, truncateName(name))
}

// DecodeTaskDescriptor reads a task descriptor payload.
func DecodeTaskDescriptor(payload []byte) (localIndex uint16, name string) {
	_ = payload[TaskDescriptorSize-1]
	localIndex = binary.LittleEndian.Uint16(payload[0:])
	field := payload[2:TaskDescriptorSize]
	for index, b := range field {
		if b == 0 {
			field = field[:index]
			break
		}
	}
	return localIndex, string(field)
}

func truncateName(name string) string {
	if len(name) <= TaskNameSize {
		return name
	}
	cut := TaskNameSize
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
