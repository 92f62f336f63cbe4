// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/clock"
)

// pollInterval is how often a pause checks whether the thread has
// stopped.
const pollInterval = time.Millisecond

// PtraceTarget pauses a thread with PTRACE_SEIZE and PTRACE_INTERRUPT.
// Seizing does not stop the thread or change its signal handling, and
// if the conductor dies the kernel detaches and the thread runs on.
//
// All calls on a PtraceTarget must come from the OS thread that called
// Pause.
type PtraceTarget struct {
	tid     int
	clock   clock.Clock
	timeout time.Duration
	seized  bool

	// request and wait are the kernel entry points, replaced in
	// tests.
	request func(request, tid int) error
	wait    func(tid int) (pid int, status unix.WaitStatus, err error)
}

// NewPtraceTarget returns a target for thread tid. timeout bounds the
// wait for the thread to stop.
func NewPtraceTarget(tid int, clock clock.Clock, timeout time.Duration) *PtraceTarget {
	return &PtraceTarget{
		tid:     tid,
		clock:   clock,
		timeout: timeout,
		request: ptraceRequest,
		wait:    waitNonBlocking,
	}
}

// Pause seizes and interrupts the thread, then waits for it to stop.
// A thread that is already gone yields ErrThreadExited.
func (p *PtraceTarget) Pause(ctx context.Context) error {
	if err := p.request(unix.PTRACE_SEIZE, p.tid); err != nil {
		return p.classify("seizing", err)
	}
	p.seized = true

	if err := p.request(unix.PTRACE_INTERRUPT, p.tid); err != nil {
		return p.classify("interrupting", err)
	}

	deadline := p.clock.Now().Add(p.timeout)
	for {
		pid, status, err := p.wait(p.tid)
		if err != nil {
			return p.classify("waiting for", err)
		}
		if pid == p.tid {
			switch {
			case status.Stopped():
				return nil
			case status.Exited(), status.Signaled():
				return fmt.Errorf("thread %d: %w", p.tid, ErrThreadExited)
			}
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("waiting for thread %d to stop: %w", p.tid, err)
		}
		if !p.clock.Now().Before(deadline) {
			return fmt.Errorf("thread %d after %v: %w", p.tid, p.timeout, ErrPauseTimeout)
		}
		p.clock.Sleep(pollInterval)
	}
}

// Resume detaches from the thread, letting it continue.
func (p *PtraceTarget) Resume() error {
	if !p.seized {
		return nil
	}
	p.seized = false
	if err := unix.PtraceDetach(p.tid); err != nil {
		return fmt.Errorf("detaching from thread %d: %w", p.tid, err)
	}
	return nil
}

// classify maps "no such process" and "no child" to ErrThreadExited.
func (p *PtraceTarget) classify(step string, err error) error {
	if err == unix.ESRCH || err == unix.ECHILD {
		return fmt.Errorf("%s thread %d: %w (%v)", step, p.tid, ErrThreadExited, err)
	}
	return fmt.Errorf("%s thread %d: %w", step, p.tid, err)
}

func ptraceRequest(request, tid int) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, uintptr(request), uintptr(tid), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func waitNonBlocking(tid int) (int, unix.WaitStatus, error) {
	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(tid, &status, unix.WALL|unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		return pid, status, err
	}
}
