// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracer is the instrumentation entry point. A [Tracer] holds
// one [ThreadState] per OS thread, created on the thread's first
// event:
//
//	render := tracer.NewTask("render")
//
//	runtime.LockOSThread()
//	thread := t.Thread()
//	thread.Push(render)
//	...
//	thread.Pop(render)
//
// Thread state is keyed by kernel thread id, not goroutine. A
// goroutine that records events must stay on one OS thread
// (runtime.LockOSThread) for its pushes and pops to land in the same
// ring; the conductor pauses and names threads, not goroutines. Such
// a goroutine should exit while still locked, which retires the
// thread together with its state.
//
// Creating a thread's state connects to the conductor, hands over the
// ring region and the first ancillary block, and allows the conductor
// to ptrace the process. If any of that fails the thread records into
// private memory instead: events are still cheap and balanced, they
// are simply never captured. Nothing in this package blocks on the
// conductor after that first connection attempt.
package tracer
