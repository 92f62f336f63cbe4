// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the ut binaries.
// Fatal is the one place raw text goes to stderr: it runs when run()
// fails, which may be before the structured logger exists.
package process
