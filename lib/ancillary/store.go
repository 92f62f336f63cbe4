// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package ancillary

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/shm"
)

// BlockName is the memfd name of every ancillary block.
const BlockName = "ut-ancillary"

// DefaultBlockSize returns the size of a block: two pages.
func DefaultBlockSize() int { return 2 * shm.PageSize }

var (
	// ErrTooManyTasks is returned once a thread has registered every
	// index a sample can carry.
	ErrTooManyTasks = errors.New("ancillary: task index space exhausted")

	// ErrRecordTooLarge is returned for an allocation that could not
	// fit even an empty block.
	ErrRecordTooLarge = errors.New("ancillary: allocation larger than a block")
)

// Task identifies a traced unit of work. Identity is the pointer: two
// Tasks with the same name are registered separately.
type Task struct {
	Name string
}

// NewTask returns a Task with the given display name.
func NewTask(name string) *Task { return &Task{Name: name} }

// Announcer receives the descriptor of every block the store creates,
// in creation order, before the block is written to. It must not
// block; a failure is logged and the block is used unannounced.
type Announcer func(fd int) error

// Options configures a Store.
type Options struct {
	// BlockSize is the size of each block in bytes. Defaults to
	// DefaultBlockSize().
	BlockSize int

	// Announce is called for each new shared block. When nil, blocks
	// are private heap memory and nothing is shared.
	Announce Announcer

	// Logger receives allocation failures. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

type block struct {
	region *shm.Region
	used   int
	next   *block
}

// Store is one thread's ancillary chain.
type Store struct {
	blockSize int
	announce  Announcer
	logger    *slog.Logger

	head    *block
	current *block
	blocks  int

	tasks     map[*Task]uint16
	nextIndex uint16
}

// NewStore creates a store and its first block, announcing it at once
// so the conductor learns of it right after the ring.
func NewStore(options Options) (*Store, error) {
	if options.BlockSize == 0 {
		options.BlockSize = DefaultBlockSize()
	}
	if options.BlockSize < abi.TaskRecordSize {
		return nil, fmt.Errorf("ancillary: block size %d cannot hold a task record", options.BlockSize)
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	store := &Store{
		blockSize: options.BlockSize,
		announce:  options.Announce,
		logger:    options.Logger,
		tasks:     make(map[*Task]uint16),
		nextIndex: 1,
	}
	store.grow()
	return store, nil
}

// grow appends a fresh block to the chain and makes it current. A
// shared block that cannot be created falls back to private memory so
// the caller can still allocate.
func (s *Store) grow() {
	var region *shm.Region
	if s.announce != nil {
		shared, err := shm.CreateSealed(BlockName, s.blockSize)
		if err != nil {
			s.logger.Warn("ancillary block creation failed, using private memory",
				"block", s.blocks, "error", err)
		} else {
			region = shared
			if err := s.announce(shared.FD()); err != nil {
				s.logger.Warn("announcing ancillary block failed",
					"block", s.blocks, "error", err)
			}
		}
	}
	if region == nil {
		region = shm.NewPrivate(s.blockSize)
	}

	fresh := &block{region: region}
	if s.current == nil {
		s.head = fresh
	} else {
		s.current.next = fresh
	}
	s.current = fresh
	s.blocks++
}

// Alloc reserves size bytes aligned to align in the current block,
// moving to a new block when the current one lacks room. The returned
// slice is zeroed and lives for the life of the store.
func (s *Store) Alloc(size, align int) ([]byte, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("ancillary: alignment %d is not a power of two", align)
	}
	if size <= 0 || size > s.blockSize {
		return nil, fmt.Errorf("%w: %d bytes, block is %d", ErrRecordTooLarge, size, s.blockSize)
	}

	offset := alignUp(s.current.used, align)
	if offset+size > s.blockSize {
		s.grow()
		offset = 0
	}
	s.current.used = offset + size
	return s.current.region.Bytes()[offset : offset+size], nil
}

// RegisterTask returns the thread-local index of task, assigning one
// and publishing its descriptor record on first sight. Indices start
// at 1; 0 means unregistered.
func (s *Store) RegisterTask(task *Task) (uint16, error) {
	if index, ok := s.tasks[task]; ok {
		return index, nil
	}
	if s.nextIndex == 0 {
		return 0, ErrTooManyTasks
	}

	record, err := s.Alloc(abi.TaskRecordSize, abi.RecordAlignment)
	if err != nil {
		return 0, err
	}

	index := s.nextIndex
	abi.PutTaskDescriptor(record[abi.RecordHeaderSize:], index, task.Name)
	abi.PublishRecord(record, abi.RecordTaskDescriptor, abi.TaskRecordSize)

	s.tasks[task] = index
	if index == math.MaxUint16 {
		s.nextIndex = 0
	} else {
		s.nextIndex++
	}
	return index, nil
}

// Tasks returns how many tasks have been registered.
func (s *Store) Tasks() int { return len(s.tasks) }

// Blocks returns the chain in allocation order.
func (s *Store) Blocks() [][]byte {
	blocks := make([][]byte, 0, s.blocks)
	for current := s.head; current != nil; current = current.next {
		blocks = append(blocks, current.region.Bytes())
	}
	return blocks
}

func alignUp(offset, align int) int {
	return (offset + align - 1) &^ (align - 1)
}
