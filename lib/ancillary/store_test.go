// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ancillary

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/shm"
)

func newPrivateStore(t *testing.T, blockSize int) *Store {
	t.Helper()
	store, err := NewStore(Options{BlockSize: blockSize})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestRegisterTaskAssignsIndicesFromOne(t *testing.T) {
	t.Parallel()

	store := newPrivateStore(t, 0)
	alpha, beta := NewTask("alpha"), NewTask("beta")

	first, err := store.RegisterTask(alpha)
	if err != nil {
		t.Fatalf("RegisterTask(alpha): %v", err)
	}
	second, err := store.RegisterTask(beta)
	if err != nil {
		t.Fatalf("RegisterTask(beta): %v", err)
	}
	if first != 1 || second != 2 {
		t.Errorf("indices: got %d, %d; want 1, 2", first, second)
	}
}

func TestRegisterTaskIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newPrivateStore(t, 0)
	task := NewTask("render")

	for attempt := 0; attempt < 3; attempt++ {
		index, err := store.RegisterTask(task)
		if err != nil {
			t.Fatalf("RegisterTask: %v", err)
		}
		if index != 1 {
			t.Fatalf("attempt %d: index %d, want 1", attempt, index)
		}
	}

	entries := Scan(store.Blocks())
	if len(entries) != 1 {
		t.Fatalf("got %d records, want exactly 1", len(entries))
	}
	if entries[0] != (TaskEntry{Index: 1, LocalIndex: 1, Name: "render"}) {
		t.Errorf("entry: got %+v", entries[0])
	}
}

func TestTasksWithEqualNamesAreDistinct(t *testing.T) {
	t.Parallel()

	store := newPrivateStore(t, 0)
	first, _ := store.RegisterTask(NewTask("draw"))
	second, _ := store.RegisterTask(NewTask("draw"))
	if first == second {
		t.Errorf("distinct tasks shared index %d", first)
	}
}

func TestExactlyFilledBlockForcesNewBlock(t *testing.T) {
	t.Parallel()

	// Two task records fill a 144-byte block exactly.
	store := newPrivateStore(t, 2*abi.TaskRecordSize)
	for _, name := range []string{"a", "b"} {
		if _, err := store.RegisterTask(NewTask(name)); err != nil {
			t.Fatalf("RegisterTask(%s): %v", name, err)
		}
	}
	if got := len(store.Blocks()); got != 1 {
		t.Fatalf("after filling: %d blocks, want 1", got)
	}

	if _, err := store.RegisterTask(NewTask("c")); err != nil {
		t.Fatalf("RegisterTask(c): %v", err)
	}
	blocks := store.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("after overflow: %d blocks, want 2", len(blocks))
	}

	entries := Scan(blocks)
	names := make([]string, len(entries))
	for index, entry := range entries {
		names[index] = entry.Name
		if entry.Index != uint16(index+1) {
			t.Errorf("entry %d has display index %d", index, entry.Index)
		}
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("names: got %v", names)
	}
}

func TestUnfilledTailIsZeroSentinel(t *testing.T) {
	t.Parallel()

	store := newPrivateStore(t, 4*abi.TaskRecordSize)
	if _, err := store.RegisterTask(NewTask("only")); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
	block := store.Blocks()[0]
	header := abi.LoadRecordHeader(block[abi.TaskRecordSize:])
	if header != (abi.RecordHeader{}) {
		t.Errorf("trailing header: got %+v, want zero", header)
	}
}

func TestAllocAlignsAndRejectsOversize(t *testing.T) {
	t.Parallel()

	store := newPrivateStore(t, 256)
	if _, err := store.Alloc(3, 1); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	second, err := store.Alloc(8, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	base := &store.Blocks()[0][0]
	if offset := uintptrDiff(base, &second[0]); offset != 8 {
		t.Errorf("aligned allocation at offset %d, want 8", offset)
	}

	if _, err := store.Alloc(257, 8); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("oversize: got %v, want ErrRecordTooLarge", err)
	}
	if _, err := store.Alloc(8, 3); err == nil {
		t.Error("non power of two alignment accepted")
	}
}

func TestNewStoreRejectsTinyBlocks(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(Options{BlockSize: abi.TaskRecordSize - 1}); err == nil {
		t.Error("expected error for a block smaller than one record")
	}
}

func TestSharedBlocksAreAnnouncedInOrder(t *testing.T) {
	t.Parallel()

	var announced []int
	store, err := NewStore(Options{
		BlockSize: shm.PageSize,
		Announce: func(fd int) error {
			duplicate, err := unix.Dup(fd)
			if err != nil {
				return err
			}
			announced = append(announced, duplicate)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() {
		for _, fd := range announced {
			unix.Close(fd)
		}
	}()

	if len(announced) != 1 {
		t.Fatalf("first block: %d announcements, want 1", len(announced))
	}

	perBlock := shm.PageSize / abi.TaskRecordSize
	for index := 0; index <= perBlock; index++ {
		if _, err := store.RegisterTask(NewTask("task")); err != nil {
			t.Fatalf("RegisterTask %d: %v", index, err)
		}
	}
	if len(announced) != 2 {
		t.Fatalf("after overflow: %d announcements, want 2", len(announced))
	}

	// Read the chain back through the announced descriptors, as the
	// conductor does.
	var blocks [][]byte
	for _, fd := range announced {
		mapping, err := shm.MapReadOnly(fd)
		if err != nil {
			t.Fatalf("MapReadOnly: %v", err)
		}
		defer mapping.Close()
		blocks = append(blocks, mapping.Bytes())
	}
	announced = nil

	entries := Scan(blocks)
	if len(entries) != perBlock+1 {
		t.Errorf("scanned %d entries, want %d", len(entries), perBlock+1)
	}
	last := entries[len(entries)-1]
	if last.LocalIndex != uint16(perBlock+1) || last.Index != last.LocalIndex {
		t.Errorf("last entry: got %+v", last)
	}
}

func TestAnnounceFailureKeepsStoreUsable(t *testing.T) {
	t.Parallel()

	store, err := NewStore(Options{
		Announce: func(int) error { return errors.New("conductor gone") },
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RegisterTask(NewTask("still-works")); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
}
