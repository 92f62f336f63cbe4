// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, or time.Sleep directly. Real() provides the standard
// library behavior. Fake() provides a clock that advances only when
// Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	registry := collector.NewRegistry(collector.RegistryOptions{Clock: c})
//	// ... start goroutines ...
//	c.WaitForTimers(1)
//	c.Advance(50 * time.Millisecond)
//
// The shared ring timestamps are not taken from a Clock: they come from
// CLOCK_MONOTONIC so that every instrumented process agrees on them.
package clock
