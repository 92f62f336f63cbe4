// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ut-view displays a capture written by ut-conductor.
//
// By default it opens an interactive timeline with one lane per
// thread. With --summary it prints a per-thread table of task counts
// and total durations instead, which works without a terminal.
package main
