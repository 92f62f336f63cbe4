// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procfs reads process and thread display names from /proc.
// The conductor names each captured thread at capture time, after the
// thread has been stopped, so the names match what the process looked
// like when its buffers were read.
package procfs
