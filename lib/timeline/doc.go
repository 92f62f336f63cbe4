// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline pairs the push and pop samples of a captured thread
// into task spans and formats their times for display.
//
// A ring that wrapped loses its oldest samples, so a thread's record
// can open with pops whose pushes were overwritten. Such a pop closes
// an implicit span starting at time zero. A pop that does not match
// the task open at its depth, or a push landing on an occupied depth,
// is counted as unbalanced and ignored.
package timeline
