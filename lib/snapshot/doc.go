// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot turns the buffers of stopped threads into a capture
// [Document] and serializes it.
//
// [Build] orders threads by process id ascending and thread id
// descending, names them from /proc, and normalizes every sample's
// timestamp to seconds since the capture epoch: the earliest first
// sample across all threads. A sample stamped before the epoch (a
// clock anomaly within one ring) is dropped.
//
// Documents serialize two ways. JSON is the external form: a bare
// array of thread objects,
//
//	[{"type": "thread", "pid": 41, "tid": 42, "name": "app", "thread_name": "render",
//	  "exited": false,
//	  "ancillary": [{"type": "task-desc", "index": 1, "name": "frame"}],
//	  "samples": [{"type": "push", "task": 1, "stack_depth": 0, "cpu": 3, "timestamp": 0.0}]}]
//
// CBOR is the archival form and carries the whole document, including
// threads that could not be captured. [WriteFile] optionally wraps
// either in a zstd or lz4 frame and returns a BLAKE3 digest of the
// encoded document; [ReadFile] detects compression and format from the
// leading bytes.
package snapshot
