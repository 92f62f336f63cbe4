// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/bureau-foundation/ut/lib/clock"
)

var (
	// ErrThreadExited is returned by PauseableTarget.Pause when the
	// thread no longer exists. The orchestrator still reads such a
	// client: nothing can write to its buffers any more.
	ErrThreadExited = errors.New("collector: thread has exited")

	// ErrPauseTimeout is returned when a thread did not stop within
	// the pause timeout.
	ErrPauseTimeout = errors.New("collector: timed out waiting for thread to stop")
)

// DefaultPauseTimeout bounds the wait for each thread to stop.
const DefaultPauseTimeout = 2 * time.Second

// PauseableTarget stops and restarts one producer thread. Pause
// returns once the thread can no longer write to its buffers.
type PauseableTarget interface {
	Pause(ctx context.Context) error
	Resume() error
}

// TargetFactory returns the target for a client's thread.
type TargetFactory func(pid, tid int) PauseableTarget

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	// NewTarget builds pause targets. Defaults to ptrace targets.
	NewTarget TargetFactory

	// Clock and PauseTimeout configure the default ptrace targets.
	Clock        clock.Clock
	PauseTimeout time.Duration

	// Resume restarts paused threads after the consumer returns. A
	// conductor that exits after one capture leaves this off: the
	// kernel releases tracees when their tracer exits.
	Resume bool

	Logger *slog.Logger
}

// Orchestrator runs captures.
type Orchestrator struct {
	newTarget TargetFactory
	resume    bool
	logger    *slog.Logger
}

// Skipped is a client left out of a capture and why.
type Skipped struct {
	Client *Client
	Err    error
}

// Result is what a capture hands to its consumer.
type Result struct {
	// Clients are stopped or exited, in the order given to Capture.
	Clients []*Client

	// Skipped could not be paused.
	Skipped []Skipped
}

// SkippedErr joins the reasons clients were skipped, each prefixed
// with its thread, or returns nil for a complete capture.
func (r Result) SkippedErr() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, skipped := range r.Skipped {
		errs = append(errs, fmt.Errorf("pid %d tid %d: %w", skipped.Client.PID, skipped.Client.TID, skipped.Err))
	}
	return errors.Join(errs...)
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(options OrchestratorOptions) *Orchestrator {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.PauseTimeout == 0 {
		options.PauseTimeout = DefaultPauseTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.NewTarget == nil {
		pauseClock, timeout := options.Clock, options.PauseTimeout
		options.NewTarget = func(pid, tid int) PauseableTarget {
			return NewPtraceTarget(tid, pauseClock, timeout)
		}
	}
	return &Orchestrator{
		newTarget: options.NewTarget,
		resume:    options.Resume,
		logger:    options.Logger,
	}
}

// Capture pauses each client in turn, calls settle (if non-nil) so
// late descriptors land, and then calls consume with the stopped
// clients. Pausing is serialized and per-client: a failure or timeout
// excludes only that client. The goroutine stays on one OS thread for
// the whole capture, since ptrace ties tracees to the thread that
// attached.
func (o *Orchestrator) Capture(ctx context.Context, clients []*Client, settle func(context.Context), consume func(Result) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var result Result
	var paused []PauseableTarget
	for _, client := range clients {
		if err := ctx.Err(); err != nil {
			result.Skipped = append(result.Skipped, Skipped{Client: client, Err: err})
			continue
		}

		target := o.newTarget(client.PID, client.TID)
		err := target.Pause(ctx)
		switch {
		case err == nil:
			paused = append(paused, target)
			result.Clients = append(result.Clients, client)
			o.logger.Debug("client paused", "pid", client.PID, "tid", client.TID)

		case errors.Is(err, ErrThreadExited):
			client.State = StateExited
			result.Clients = append(result.Clients, client)
			o.logger.Info("client thread already exited", "pid", client.PID, "tid", client.TID)

		default:
			result.Skipped = append(result.Skipped, Skipped{Client: client, Err: err})
			o.logger.Warn("skipping client", "pid", client.PID, "tid", client.TID, "error", err)
		}
	}

	if len(result.Clients) == 0 && len(clients) > 0 {
		o.logger.Warn("no client could be stopped", "clients", len(clients))
	}

	if settle != nil {
		settle(ctx)
	}
	err := consume(result)

	if o.resume {
		for _, target := range paused {
			if resumeErr := target.Resume(); resumeErr != nil {
				o.logger.Warn("resuming thread failed", "error", resumeErr)
			}
		}
	}
	return err
}
