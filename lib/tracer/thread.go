// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package tracer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/ancillary"
	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/ring"
	"github.com/bureau-foundation/ut/lib/shm"
)

// ErrUnbalancedPop is returned by Pop when the task is not the one on
// top of the thread's stack. The pop sample is recorded anyway so the
// anomaly shows up in the capture.
var ErrUnbalancedPop = errors.New("tracer: pop does not match the innermost push")

// Task identifies a traced unit of work by pointer. Create each Task
// once and reuse it; its name is published the first time a thread
// pushes or pops it.
type Task = ancillary.Task

// NewTask returns a Task with the given display name.
func NewTask(name string) *Task { return ancillary.NewTask(name) }

// ThreadState is one thread's ring, ancillary chain, and task stack.
// Only the owning thread may call its methods. It is never torn down:
// the conductor may read its memory after the thread exits.
type ThreadState struct {
	pid, tid int

	region *shm.Region
	writer *ring.Writer
	store  *ancillary.Store

	// connection stays open for the thread's lifetime: ancillary
	// blocks are announced on it, and its close tells the conductor
	// the thread's process went away.
	connection *conductor.Conn

	stack      []uint16
	timesource Timesource
	logger     *slog.Logger
}

// newSharedState builds a thread state whose memory the conductor can
// see. Any failure leaves nothing behind and is returned so the
// caller can fall back to private memory.
func newSharedState(tracer *Tracer, pid, tid int, threadName string) (*ThreadState, error) {
	region, err := shm.CreateSealed("ut-buffer-"+threadName, shm.PageSize+tracer.capacity)
	if err != nil {
		return nil, err
	}
	writer, err := initRing(region, pid, tid)
	if err != nil {
		region.Close()
		return nil, err
	}

	ctx, cancel := tracer.dialContext()
	connection, err := conductor.Dial(ctx, tracer.socketName)
	cancel()
	if err != nil {
		region.Close()
		return nil, err
	}

	if err := connection.SendFD(region.FD()); err != nil {
		connection.Close()
		region.Close()
		return nil, fmt.Errorf("handing ring to conductor: %w", err)
	}

	allowPtrace(connection, tracer.logger)

	store, err := ancillary.NewStore(ancillary.Options{
		Announce: connection.SendFD,
		Logger:   tracer.logger,
	})
	if err != nil {
		connection.Close()
		region.Close()
		return nil, err
	}

	return &ThreadState{
		pid:        pid,
		tid:        tid,
		region:     region,
		writer:     writer,
		store:      store,
		connection: connection,
		timesource: tracer.timesource,
		logger:     tracer.logger.With("tid", tid),
	}, nil
}

// newPrivateState builds a thread state in heap memory. It cannot
// fail for a valid capacity.
func newPrivateState(tracer *Tracer, pid, tid int) (*ThreadState, error) {
	region := shm.NewPrivate(shm.PageSize + tracer.capacity)
	writer, err := initRing(region, pid, tid)
	if err != nil {
		return nil, err
	}
	store, err := ancillary.NewStore(ancillary.Options{Logger: tracer.logger})
	if err != nil {
		return nil, err
	}
	return &ThreadState{
		pid:        pid,
		tid:        tid,
		region:     region,
		writer:     writer,
		store:      store,
		timesource: tracer.timesource,
		logger:     tracer.logger.With("tid", tid),
	}, nil
}

// initRing writes the info header at the start of region and wraps
// the pages after it as the ring.
func initRing(region *shm.Region, pid, tid int) (*ring.Writer, error) {
	data := region.Bytes()
	info, err := abi.NewInfoWriter(data[:shm.PageSize])
	if err != nil {
		return nil, err
	}
	info.Init(uint32(pid), uint32(tid))
	return ring.NewWriter(info, data[shm.PageSize:])
}

// Push records entry into task. The recorded depth is the number of
// tasks open before this one.
func (s *ThreadState) Push(task *Task) {
	index := s.register(task)
	s.append(abi.SampleTaskPush, index, len(s.stack))
	s.stack = append(s.stack, index)
}

// Pop records exit from task. The recorded depth is the number of
// tasks still open after this one, so a push and its pop carry the
// same depth.
func (s *ThreadState) Pop(task *Task) error {
	index := s.register(task)

	balanced := len(s.stack) > 0 && s.stack[len(s.stack)-1] == index
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
	s.append(abi.SampleTaskPop, index, len(s.stack))

	if !balanced {
		s.logger.Debug("unbalanced pop", "task", task.Name, "depth", len(s.stack))
		return fmt.Errorf("%w: popping %q", ErrUnbalancedPop, task.Name)
	}
	return nil
}

// register returns task's local index, or 0 when the thread has run
// out of indices.
func (s *ThreadState) register(task *Task) uint16 {
	index, err := s.store.RegisterTask(task)
	if err != nil {
		s.logger.Debug("task not registered", "task", task.Name, "error", err)
		return 0
	}
	return index
}

func (s *ThreadState) append(sampleType abi.SampleType, index uint16, depth int) {
	timestamp, cpu := s.timesource.Stamp()
	s.writer.Append(abi.Sample{
		Type:       sampleType,
		TaskIndex:  index,
		StackDepth: uint16(depth),
		CPU:        cpu,
		Timestamp:  timestamp,
	})
}

// TID returns the kernel thread id the state belongs to.
func (s *ThreadState) TID() int { return s.tid }

// Shared reports whether the conductor received this thread's ring.
func (s *ThreadState) Shared() bool { return s.connection != nil }

// Depth returns the number of open tasks.
func (s *ThreadState) Depth() int { return len(s.stack) }

// Written returns the number of samples recorded over the thread's
// lifetime.
func (s *ThreadState) Written() uint32 { return s.writer.Written() }

// Samples reconstructs the thread's own ring. It is meant for
// diagnostics and tests; the conductor reads the shared copy.
func (s *ThreadState) Samples() ([]abi.Sample, error) {
	data := s.region.Bytes()
	info, err := abi.NewInfoView(data[:shm.PageSize])
	if err != nil {
		return nil, err
	}
	return ring.Reconstruct(info, data[shm.PageSize:])
}

// Tasks scans the thread's own ancillary chain.
func (s *ThreadState) Tasks() []ancillary.TaskEntry {
	return ancillary.Scan(s.store.Blocks())
}
