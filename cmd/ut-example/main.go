// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ut/lib/logging"
	"github.com/bureau-foundation/ut/lib/process"
	"github.com/bureau-foundation/ut/lib/tracer"
	"github.com/bureau-foundation/ut/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		workers    int
		duration   time.Duration
		frame      time.Duration
		socketName string
		private    bool
		logLevel   string
	)
	flagSet := pflag.NewFlagSet("ut-example", pflag.ContinueOnError)
	flagSet.IntVar(&workers, "threads", 4, "number of instrumented worker threads")
	flagSet.DurationVar(&duration, "duration", 30*time.Second, "how long to run; 0 runs until interrupted")
	flagSet.DurationVar(&frame, "frame", 16*time.Millisecond, "target frame period")
	flagSet.StringVar(&socketName, "socket", "", "conductor socket name (default: ut-conductor)")
	flagSet.BoolVar(&private, "private", false, "record without connecting to a conductor")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "ut-example")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Usage: ut-example [flags]\n\n%s", flagSet.FlagUsages())
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: ut-example [flags]\n\n%s", flagSet.FlagUsages())
		return nil
	}
	if workers < 1 {
		return fmt.Errorf("--threads must be at least 1, got %d", workers)
	}

	logger, err := logging.New(logging.Options{Level: logLevel})
	if err != nil {
		return err
	}

	traces, err := tracer.New(tracer.Options{
		SocketName: socketName,
		Private:    private,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger.Info("workload starting", "pid", os.Getpid(), "threads", workers, "frame", frame)

	tasks := newTasks()
	var group sync.WaitGroup
	for index := range workers {
		group.Add(1)
		go func() {
			defer group.Done()
			runWorker(ctx, traces, tasks, index, frame, logger)
		}()
	}
	group.Wait()

	logger.Info("workload finished", "threads", traces.Threads())
	return nil
}

// tasks are shared by every worker; each thread registers them in its
// own ancillary store on first use.
type tasks struct {
	frame, update, draw *tracer.Task
}

func newTasks() tasks {
	return tasks{
		frame:  tracer.NewTask("frame"),
		update: tracer.NewTask("update"),
		draw:   tracer.NewTask("draw"),
	}
}

// runWorker stays on one OS thread so every sample lands in the same
// ring. It returns still locked: the runtime then terminates the
// thread instead of handing it, and its ThreadState, to another
// goroutine.
func runWorker(ctx context.Context, traces *tracer.Tracer, tasks tasks, index int, period time.Duration, logger *slog.Logger) {
	runtime.LockOSThread()

	thread := traces.Thread()
	logger.Debug("worker started", "worker", index, "tid", thread.TID(), "shared", thread.Shared())

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		thread.Push(tasks.frame)

		thread.Push(tasks.update)
		busy(period / 4 * time.Duration(1+index%3) / 3)
		if err := thread.Pop(tasks.update); err != nil {
			logger.Warn("unbalanced pop", "task", "update", "error", err)
		}

		thread.Push(tasks.draw)
		busy(period / 4)
		if err := thread.Pop(tasks.draw); err != nil {
			logger.Warn("unbalanced pop", "task", "draw", "error", err)
		}

		if err := thread.Pop(tasks.frame); err != nil {
			logger.Warn("unbalanced pop", "task", "frame", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Debug("worker stopped", "worker", index, "frames", frame+1, "samples", thread.Written())
			return
		case <-ticker.C:
		}
	}
}

// busy spins for roughly d without yielding the thread.
func busy(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
