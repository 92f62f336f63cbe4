// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ancillary implements the per-thread descriptor store: an
// append-only bump allocator over a chain of sealed shared blocks that
// carries rare, variable metadata (task names) referenced from ring
// samples by small integer indices.
//
// Each [Store] has exactly one writer, the owning thread. Records are
// written payload first and published by an atomic store of their
// size, so a reader either sees a whole record or a zero size that
// ends the block. When the current block lacks room, a fresh block is
// created and its descriptor handed to an [Announcer] before any
// record is written into it. Blocks are never reclaimed; a thread's
// metadata is bounded by the number of distinct tasks it sees.
//
// [Scan] is the reader side: it walks a chain of mapped blocks and
// returns the task descriptors in publication order.
package ancillary
