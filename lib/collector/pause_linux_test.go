// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package collector

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/clock"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// stubbedTarget returns a target whose kernel calls are replaced.
func stubbedTarget(fakeClock clock.Clock, request func(int, int) error, wait func(int) (int, unix.WaitStatus, error)) *PtraceTarget {
	target := NewPtraceTarget(1234, fakeClock, time.Second)
	target.request = request
	target.wait = wait
	return target
}

func noRequestError(int, int) error { return nil }

func TestPauseSeizesThenInterrupts(t *testing.T) {
	t.Parallel()

	var requests []int
	target := stubbedTarget(clock.Fake(testEpoch),
		func(request, tid int) error {
			requests = append(requests, request)
			return nil
		},
		func(tid int) (int, unix.WaitStatus, error) {
			// 0x7f in the low byte marks a stopped child.
			return tid, unix.WaitStatus(0x857f), nil
		})

	if err := target.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if len(requests) != 2 || requests[0] != unix.PTRACE_SEIZE || requests[1] != unix.PTRACE_INTERRUPT {
		t.Errorf("requests: got %#x", requests)
	}
}

func TestPauseMapsMissingThreadToExited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request func(int, int) error
		wait    func(int) (int, unix.WaitStatus, error)
	}{
		{
			name:    "seize ESRCH",
			request: func(int, int) error { return unix.ESRCH },
		},
		{
			name: "interrupt ESRCH",
			request: func(request, _ int) error {
				if request == unix.PTRACE_INTERRUPT {
					return unix.ESRCH
				}
				return nil
			},
		},
		{
			name:    "wait ECHILD",
			request: noRequestError,
			wait:    func(int) (int, unix.WaitStatus, error) { return -1, 0, unix.ECHILD },
		},
		{
			name:    "exited while seized",
			request: noRequestError,
			wait:    func(tid int) (int, unix.WaitStatus, error) { return tid, unix.WaitStatus(0), nil },
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			target := stubbedTarget(clock.Fake(testEpoch), test.request, test.wait)
			if err := target.Pause(context.Background()); !errors.Is(err, ErrThreadExited) {
				t.Errorf("got %v, want ErrThreadExited", err)
			}
		})
	}
}

func TestPausePermissionErrorIsNotExited(t *testing.T) {
	t.Parallel()

	target := stubbedTarget(clock.Fake(testEpoch),
		func(int, int) error { return unix.EPERM }, nil)
	err := target.Pause(context.Background())
	if err == nil || errors.Is(err, ErrThreadExited) {
		t.Errorf("got %v, want a non-exit failure", err)
	}
	if !errors.Is(err, unix.EPERM) {
		t.Errorf("EPERM not preserved: %v", err)
	}
}

func TestPauseTimesOut(t *testing.T) {
	t.Parallel()

	fakeClock := clock.Fake(testEpoch)
	target := stubbedTarget(fakeClock, noRequestError,
		func(int) (int, unix.WaitStatus, error) { return 0, 0, nil })

	result := make(chan error, 1)
	go func() { result <- target.Pause(context.Background()) }()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)

	select {
	case err := <-result:
		if !errors.Is(err, ErrPauseTimeout) {
			t.Errorf("got %v, want ErrPauseTimeout", err)
		}
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Pause did not time out")
	}
}

func TestPtracePausesRealChild(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	command := exec.Command("sleep", "30")
	if err := command.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	defer func() {
		command.Process.Kill()
		command.Wait()
	}()

	target := NewPtraceTarget(command.Process.Pid, clock.Real(), 5*time.Second)
	err := target.Pause(context.Background())
	if errors.Is(err, unix.EPERM) {
		t.Skip("ptrace not permitted here")
	}
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := target.Resume(); err != nil {
		t.Errorf("Resume: %v", err)
	}
}

func TestPtraceOfExitedThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	command := exec.Command("true")
	if err := command.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}

	target := NewPtraceTarget(command.Process.Pid, clock.Real(), time.Second)
	if err := target.Pause(context.Background()); !errors.Is(err, ErrThreadExited) {
		t.Errorf("got %v, want ErrThreadExited", err)
	}
}
