// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ut-example is an instrumented workload for trying ut-conductor.
//
// Each worker goroutine locks itself to an OS thread and runs a frame
// loop of nested tasks (frame, update, draw) until the duration
// elapses or the process is interrupted. Start ut-conductor first,
// run ut-example, then send the conductor SIGINT to capture.
package main
