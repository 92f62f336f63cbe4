// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector is the conductor's side of a capture: the
// [Registry] of connected producer threads and the [Orchestrator]
// that stops them and hands their buffers to a consumer.
//
// The registry is owned by one goroutine, the one running
// [Registry.Run]. An accept goroutine and one goroutine per connection
// do the blocking socket work and report to the owner over a channel;
// only the owner mutates [Client] values. Each client moves through
//
//	Connecting → Active → (Exited | Severed)
//
// A connection becomes Active once its ring descriptor has arrived,
// mapped read-only, and passed the layout version check. Any protocol
// violation or mapping failure severs it. A connection that simply
// closes stays Active: its process may have exited, but the memory it
// shared is still mapped and worth reading.
//
// On a trigger the owner runs the capture callback on its own
// goroutine. [Orchestrator.Capture] pauses every Active client through
// a [PauseableTarget] (ptrace seize and interrupt on Linux), lets
// descriptors already in flight land, and then hands the stopped
// clients to a consumer while they cannot write. A client whose thread
// is already gone is marked Exited and still read; any other pause
// failure skips only that client.
package collector
