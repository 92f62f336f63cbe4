// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the ut
// binaries.
//
// Configuration is loaded from a single file named by either the
// UT_CONFIG environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no search path and no per-field environment
// override. A binary run with neither uses [Default].
//
// Variable expansion is performed on the output path after loading:
// ${HOME}, ${UT_CAPTURE_DIR}, and ${VAR:-default} patterns are
// expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Conductor, Output, and Log
//   - [Default] -- returns a Config with built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other ut packages.
package config
