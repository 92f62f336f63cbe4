// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package snapshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/bureau-foundation/ut/lib/abi"
	"github.com/bureau-foundation/ut/lib/collector"
	"github.com/bureau-foundation/ut/lib/conductor"
	"github.com/bureau-foundation/ut/lib/procfs"
	"github.com/bureau-foundation/ut/lib/testutil"
	"github.com/bureau-foundation/ut/lib/tracer"
)

// producerSocketVariable, when set, turns the test binary into a
// producer that traces against the named conductor and exits.
const producerSocketVariable = "UT_SNAPSHOT_PRODUCER_SOCKET"

const captureTimeout = 10 * time.Second

func TestMain(m *testing.M) {
	if name := os.Getenv(producerSocketVariable); name != "" {
		os.Exit(runProducer(name))
	}
	os.Exit(m.Run())
}

// runProducer pushes A, pushes B, pops B, pops A, and returns.
func runProducer(name string) int {
	runtime.LockOSThread()

	traces, err := tracer.New(tracer.Options{
		SocketName:  name,
		Capacity:    64 * abi.SampleSize,
		DialTimeout: captureTimeout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	thread := traces.Thread()
	if !thread.Shared() {
		fmt.Fprintln(os.Stderr, "conductor unreachable")
		return 1
	}

	outer, inner := tracer.NewTask("A"), tracer.NewTask("B")
	thread.Push(outer)
	thread.Push(inner)
	if err := thread.Pop(inner); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := thread.Pop(outer); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func TestCaptureOfExitedProducer(t *testing.T) {
	t.Parallel()

	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("Executable: %v", err)
	}
	listener, err := conductor.Listen(testutil.SocketName("ut-snapshot"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	statuses := make(chan collector.ClientStatus, 64)
	registry := collector.NewRegistry(collector.RegistryOptions{
		Listener:    listener,
		SettleDelay: 10 * time.Millisecond,
		Observe: func(status collector.ClientStatus) {
			select {
			case statuses <- status:
			default:
			}
		},
	})
	orchestrator := collector.NewOrchestrator(collector.OrchestratorOptions{PauseTimeout: time.Second})

	documents := make(chan *Document, 1)
	triggers := make(chan struct{}, 1)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		done <- registry.Run(ctx, triggers, func(ctx context.Context, clients []*collector.Client) error {
			return orchestrator.Capture(ctx, clients, registry.Settle, func(result collector.Result) error {
				sources, skipped := FromCapture(result)
				document := Build(sources, procfs.Names{})
				document.Skipped = skipped
				documents <- document
				return nil
			})
		})
	}()

	// CombinedOutput reaps the producer, so by the trigger its thread
	// no longer exists.
	command := exec.Command(executable)
	command.Env = append(os.Environ(), producerSocketVariable+"="+listener.Name())
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("producer: %v\n%s", err, output)
	}

	for {
		status := testutil.RequireReceive(t, statuses, captureTimeout, "producer disconnect")
		if status.State == collector.StateSevered {
			t.Fatalf("producer severed: %v", status.Err)
		}
		if status.Disconnected {
			if status.Blocks != 1 {
				t.Fatalf("got %d ancillary blocks, want 1", status.Blocks)
			}
			break
		}
	}
	triggers <- struct{}{}

	document := testutil.RequireReceive(t, documents, captureTimeout, "capture document")
	if err := testutil.RequireReceive(t, done, captureTimeout, "registry exit"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(document.Skipped) != 0 {
		t.Errorf("skipped: %+v", document.Skipped)
	}
	if len(document.Threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(document.Threads))
	}
	thread := document.Threads[0]
	if thread.PID != command.Process.Pid {
		t.Errorf("pid: got %d, want %d", thread.PID, command.Process.Pid)
	}
	if !thread.Exited {
		t.Error("exited producer not marked exited")
	}
	if !thread.Unnamed {
		t.Error("names resolved for a reaped process")
	}

	if len(thread.Ancillary) != 2 || thread.Ancillary[0].Name != "A" || thread.Ancillary[1].Name != "B" {
		t.Fatalf("ancillary: %+v", thread.Ancillary)
	}

	want := []struct {
		kind  string
		task  uint16
		depth uint16
	}{
		{"push", 1, 0},
		{"push", 2, 1},
		{"pop", 2, 1},
		{"pop", 1, 0},
	}
	if len(thread.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(thread.Samples), len(want))
	}
	for index, sample := range thread.Samples {
		if sample.Type != want[index].kind || sample.Task != want[index].task || sample.StackDepth != want[index].depth {
			t.Errorf("sample %d: got %s task %d depth %d, want %s task %d depth %d", index,
				sample.Type, sample.Task, sample.StackDepth,
				want[index].kind, want[index].task, want[index].depth)
		}
	}
	if thread.Samples[0].Timestamp != 0 {
		t.Errorf("first sample at %v, want the epoch", thread.Samples[0].Timestamp)
	}
}
