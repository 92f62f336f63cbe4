// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"

	"github.com/bureau-foundation/ut/lib/abi"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the shared layout version, Go version, and
// platform. Producers and conductors built from different trees can
// interoperate only when their layout versions match.
func Full() string {
	return fmt.Sprintf("%s\n  Layout: %#x\n  Go: %s\n  Platform: %s/%s",
		Info(), abi.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes "<program> <Full()>" to w for a --version flag.
func Print(w io.Writer, program string) {
	fmt.Fprintf(w, "%s %s\n", program, Full())
}
