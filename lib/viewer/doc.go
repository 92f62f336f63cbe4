// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewer is a terminal timeline for capture files. Built on
// bubbletea, it shows one lane per thread with that thread's task
// spans laid out against a shared time axis, and a detail pane listing
// the selected thread's spans with their durations.
//
// The visible time window can be panned and zoomed from the keyboard.
// Lanes draw the deepest span covering each column, so nested tasks
// show through their parents.
package viewer
