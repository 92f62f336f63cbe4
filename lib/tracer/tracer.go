// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package tracer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/procfs"
	"github.com/bureau-foundation/ut/lib/ring"
)

// DefaultDialTimeout bounds the one connection attempt a thread makes
// to the conductor.
const DefaultDialTimeout = 100 * time.Millisecond

// Options configures a Tracer. The zero value traces to the default
// conductor with default ring sizes.
type Options struct {
	// SocketName is the conductor's abstract socket name. Defaults to
	// conductor.DefaultName.
	SocketName string

	// Capacity is the ring size in bytes: a power of two. Defaults to
	// ring.DefaultCapacity.
	Capacity int

	// DialTimeout bounds each thread's connection attempt.
	DialTimeout time.Duration

	// Private disables sharing: every thread records into heap
	// memory and no connection is attempted.
	Private bool

	// Timesource stamps samples. Defaults to MonotonicTimesource.
	Timesource Timesource

	// Logger receives diagnostics. Defaults to discarding them so
	// instrumentation never writes to the host's output.
	Logger *slog.Logger
}

// Tracer is the arena of per-thread state for one process.
type Tracer struct {
	socketName  string
	capacity    int
	dialTimeout time.Duration
	private     bool
	timesource  Timesource
	logger      *slog.Logger

	// threads maps a kernel thread id to its *ThreadState. Each entry
	// is stored once, by the thread it belongs to.
	threads sync.Map
}

// New returns a Tracer. It returns an error only for an invalid
// capacity.
func New(options Options) (*Tracer, error) {
	if options.SocketName == "" {
		options.SocketName = conductor.DefaultName
	}
	if options.Capacity == 0 {
		options.Capacity = ring.DefaultCapacity
	}
	if err := ring.ValidateCapacity(options.Capacity); err != nil {
		return nil, err
	}
	if options.DialTimeout == 0 {
		options.DialTimeout = DefaultDialTimeout
	}
	if options.Timesource == nil {
		options.Timesource = MonotonicTimesource{}
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Tracer{
		socketName:  options.SocketName,
		capacity:    options.Capacity,
		dialTimeout: options.DialTimeout,
		private:     options.Private,
		timesource:  options.Timesource,
		logger:      options.Logger,
	}, nil
}

// Thread returns the calling OS thread's state, creating it on first
// use. The caller must be locked to its OS thread for the result to
// stay meaningful. State outlives the lock: a goroutine that unlocks
// returns the thread, open task stack included, to the scheduler, and
// the next goroutine tracing there inherits it. Goroutines that own a
// thread for tracing should exit without unlocking so the runtime
// destroys the thread.
func (t *Tracer) Thread() *ThreadState {
	tid := unix.Gettid()
	if state, ok := t.threads.Load(tid); ok {
		return state.(*ThreadState)
	}
	state := t.newThreadState(unix.Getpid(), tid)
	t.threads.Store(tid, state)
	return state
}

// Push records entry into task on the calling thread.
func (t *Tracer) Push(task *Task) { t.Thread().Push(task) }

// Pop records exit from task on the calling thread.
func (t *Tracer) Pop(task *Task) error { return t.Thread().Pop(task) }

// Threads returns how many threads have recorded events.
func (t *Tracer) Threads() int {
	count := 0
	t.threads.Range(func(any, any) bool {
		count++
		return true
	})
	return count
}

func (t *Tracer) newThreadState(pid, tid int) *ThreadState {
	if !t.private {
		threadName, err := procfs.Names{}.Self()
		if err != nil {
			threadName = "thread"
		}
		state, err := newSharedState(t, pid, tid, threadName)
		if err == nil {
			t.logger.Debug("thread connected to conductor",
				"tid", tid, "socket", t.socketName)
			return state
		}
		t.logger.Debug("tracing thread privately", "tid", tid, "error", err)
	}

	state, err := newPrivateState(t, pid, tid)
	if err != nil {
		// Capacity was validated in New, so this is unreachable
		// short of a layout bug.
		panic("tracer: private thread state: " + err.Error())
	}
	return state
}

func (t *Tracer) dialContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.dialTimeout)
}

var (
	defaultOnce   sync.Once
	defaultTracer *Tracer
)

// Default returns the process-wide Tracer with default options,
// creating it on first use.
func Default() *Tracer {
	defaultOnce.Do(func() {
		tracer, err := New(Options{})
		if err != nil {
			panic("tracer: default options rejected: " + err.Error())
		}
		defaultTracer = tracer
	})
	return defaultTracer
}

// Push records entry into task on the calling thread of the default
// Tracer.
func Push(task *Task) { Default().Push(task) }

// Pop records exit from task on the calling thread of the default
// Tracer.
func Pop(task *Task) error { return Default().Pop(task) }
