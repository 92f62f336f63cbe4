// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// sizeSeals are the seals every shared region carries once sized.
// F_SEAL_WRITE is deliberately absent: the producer keeps writing.
const sizeSeals = unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_SEAL

// ErrNotSealed is returned by MapReadOnly for a descriptor whose size
// could still change.
var ErrNotSealed = errors.New("shm: region is not sealed against resizing")

// PageSize is the system page size. Ring headers and ancillary blocks
// are sized in pages.
var PageSize = os.Getpagesize()

// Region is a writable memory region owned by a producer. Shared
// regions are backed by a sealed memfd; private ones by the Go heap.
type Region struct {
	fd   int
	data []byte
}

// CreateSealed creates a memfd named name, sizes it to size bytes,
// seals it, and maps it read-write. The name only shows up in
// /proc/<pid>/fd and /proc/<pid>/maps.
func CreateSealed(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: region size must be positive, got %d", size)
	}

	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("shm: memfd_create %q: %w", name, err)
	}

	if err := ignoringEINTR(func() error { return unix.Ftruncate(fd, int64(size)) }); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: sizing %q to %d bytes: %w", name, size, err)
	}

	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, sizeSeals); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: sealing %q: %w", name, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mapping %q: %w", name, err)
	}

	return &Region{fd: fd, data: data}, nil
}

// NewPrivate returns a zeroed heap region of size bytes. It has no
// descriptor and cannot be shared.
func NewPrivate(size int) *Region {
	return &Region{fd: -1, data: make([]byte, size)}
}

// FD returns the memfd descriptor, or -1 for a private region.
func (r *Region) FD() int { return r.fd }

// Bytes returns the mapped memory.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the region length in bytes.
func (r *Region) Size() int { return len(r.data) }

// Shared reports whether the region is backed by a memfd.
func (r *Region) Shared() bool { return r.fd >= 0 }

// Close unmaps a shared region and closes its descriptor. Any copy of
// the descriptor already passed to another process stays valid.
func (r *Region) Close() error {
	if !r.Shared() {
		r.data = nil
		return nil
	}
	var firstErr error
	if err := unix.Munmap(r.data); err != nil {
		firstErr = fmt.Errorf("shm: unmapping region: %w", err)
	}
	if err := unix.Close(r.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm: closing region fd: %w", err)
	}
	r.data = nil
	r.fd = -1
	return firstErr
}

// Mapping is the conductor's read-only view of a region received from
// a producer.
type Mapping struct {
	fd   int
	data []byte
}

// MapReadOnly maps the whole of a received memfd with PROT_READ. The
// region must carry the shrink and grow seals. On success the Mapping
// owns fd; on failure fd is left open for the caller to close.
func MapReadOnly(fd int) (*Mapping, error) {
	seals, err := unix.FcntlInt(uintptr(fd), unix.F_GET_SEALS, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: reading seals of fd %d: %w", fd, err)
	}
	if seals&(unix.F_SEAL_SHRINK|unix.F_SEAL_GROW) != unix.F_SEAL_SHRINK|unix.F_SEAL_GROW {
		return nil, fmt.Errorf("%w (fd %d, seals %#x)", ErrNotSealed, fd, seals)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, fmt.Errorf("shm: stating fd %d: %w", fd, err)
	}
	if stat.Size <= 0 {
		return nil, fmt.Errorf("shm: fd %d has size %d", fd, stat.Size)
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mapping fd %d read-only: %w", fd, err)
	}
	return &Mapping{fd: fd, data: data}, nil
}

// Bytes returns the mapped memory. Writing to it faults.
func (m *Mapping) Bytes() []byte { return m.data }

// Size returns the mapping length in bytes.
func (m *Mapping) Size() int { return len(m.data) }

// Close unmaps the region and closes the descriptor.
func (m *Mapping) Close() error {
	var firstErr error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			firstErr = fmt.Errorf("shm: unmapping: %w", err)
		}
		m.data = nil
	}
	if m.fd >= 0 {
		if err := unix.Close(m.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shm: closing fd: %w", err)
		}
		m.fd = -1
	}
	return firstErr
}

func ignoringEINTR(call func() error) error {
	for {
		err := call()
		if err != unix.EINTR {
			return err
		}
	}
}
