// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shm manages the anonymous shared memory regions that carry
// trace data between an instrumented process and the conductor.
//
// A producer calls [CreateSealed] to get a memfd that is sized with
// ftruncate and then sealed against shrinking, growing, and further
// sealing. Writes stay allowed so the producer can keep filling it.
// The descriptor is passed to the conductor, which calls
// [MapReadOnly]: that refuses regions lacking the size seals, since a
// region that can shrink under a live mapping turns reads into SIGBUS.
//
// When no conductor is reachable, [NewPrivate] provides a heap region
// of the same shape so instrumentation keeps working unshared.
package shm
