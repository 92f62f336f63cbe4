// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers the ut binaries write to
// standard error. On a terminal the output is slog's text format; when
// redirected it is JSON, one object per line.
package logging
