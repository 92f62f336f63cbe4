// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package tracer

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ut/lib/conductor"
)

// allowPtrace names the conductor as this process's ptracer. Under
// Yama's ptrace_scope=1 a non-ancestor cannot seize threads without
// it. Failure only matters on such systems, so it is logged and
// ignored.
func allowPtrace(connection *conductor.Conn, logger *slog.Logger) {
	credentials, err := connection.PeerCredentials()
	if err != nil {
		logger.Debug("conductor credentials unavailable", "error", err)
		return
	}
	if err := unix.Prctl(unix.PR_SET_PTRACER, uintptr(credentials.PID), 0, 0, 0); err != nil {
		logger.Debug("PR_SET_PTRACER failed", "conductor_pid", credentials.PID, "error", err)
	}
}
