// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package tracer

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Timesource stamps samples. Every producer feeding one capture must
// use the same clock domain, or cross-thread ordering is meaningless.
type Timesource interface {
	// Stamp returns a timestamp in nanoseconds and the CPU the caller
	// is running on.
	Stamp() (timestamp uint64, cpu uint8)
}

// MonotonicTimesource reads CLOCK_MONOTONIC and getcpu(2). Both are
// vDSO-backed or cheap syscalls and agree across processes.
type MonotonicTimesource struct{}

// Stamp implements Timesource. The CPU is truncated to eight bits.
func (MonotonicTimesource) Stamp() (uint64, uint8) {
	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		return 0, 0
	}

	var cpu uint32
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0)
	if errno != 0 {
		cpu = 0
	}
	return uint64(now.Nano()), uint8(cpu)
}
