// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ring implements the per-thread circular sample buffer: the
// single-writer append path used by instrumented threads and the
// reader-side reconstruction the conductor runs against a paused
// thread's mapping.
//
// The writer never blocks and takes no lock. Each append fills the
// slot at (written * SampleSize) mod capacity, then publishes
// written+1 with an atomic store. A reader that loads a count n can
// trust slots n-capacity+1 .. n-1; the slot at n mod capacity may be
// mid-write if the writer was stopped inside Append, so reconstruction
// of a wrapped buffer skips the oldest surviving slot.
package ring
