// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package abi defines the binary layout shared between an instrumented
// process and the conductor. Both sides map the same memfd pages, so
// every offset and field width here is a protocol constant: changing
// one without bumping [Version] corrupts captures silently.
//
// Three structures live in shared memory:
//
//   - The info header at the start of a ring region:
//     {abi_version u32, pid u32, tid u32, sample_size u32, n_samples_written u32}.
//   - Fixed-size samples in the ring that follows the header page:
//     {type u16, task_index u16, stack_depth u16, cpu u8, pad u8, timestamp u64}.
//   - Ancillary records in append-only blocks:
//     {record_type u32, pad u16, size u16} followed by a payload, currently
//     only a task descriptor {local_index u16, name [62]byte}.
//
// Writers get a [InfoWriter]; the conductor only ever holds an
// [InfoView], which has no mutating methods. The two fields that act
// as publication points (n_samples_written and a record's size) are
// accessed with sync/atomic so that a reader observing the new value
// also observes everything written before it.
//
// The layout is little-endian. Builds are restricted to linux/amd64
// and linux/arm64.
package abi
