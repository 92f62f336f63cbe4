// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "strconv"

// Unit is a time unit for displaying seconds.
type Unit struct {
	Suffix string
	Scale  float64
}

var (
	Seconds      = Unit{Suffix: "s", Scale: 1}
	Milliseconds = Unit{Suffix: "ms", Scale: 1e3}
	Microseconds = Unit{Suffix: "µs", Scale: 1e6}
	Nanoseconds  = Unit{Suffix: "ns", Scale: 1e9}
)

// PickUnit chooses the unit for displaying values around reference
// seconds: the largest unit in which reference exceeds one.
func PickUnit(reference float64) Unit {
	switch {
	case reference > 1:
		return Seconds
	case reference > 1e-3:
		return Milliseconds
	case reference > 1e-6:
		return Microseconds
	default:
		return Nanoseconds
	}
}

// Format renders seconds in the unit with three decimals.
func (u Unit) Format(seconds float64) string {
	return strconv.FormatFloat(seconds*u.Scale, 'f', 3, 64) + u.Suffix
}

// FormatDuration renders seconds in the unit it picks for itself.
func FormatDuration(seconds float64) string {
	return PickUnit(seconds).Format(seconds)
}
