// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import "math"

// minimumWindow is the narrowest time window zooming reaches, in
// seconds.
const minimumWindow = 1e-9

// Window is the visible time range, in seconds since the capture
// epoch.
type Window struct {
	Start float64
	End   float64
}

// Length returns End-Start.
func (w Window) Length() float64 { return w.End - w.Start }

// Zoom scales the window about its center by factor (below one zooms
// in) and keeps it within limit.
func (w Window) Zoom(factor float64, limit Window) Window {
	center := (w.Start + w.End) / 2
	half := math.Max(w.Length()*factor, minimumWindow) / 2
	return Window{Start: center - half, End: center + half}.clamp(limit)
}

// Pan shifts the window by fraction of its own length, keeping it
// within limit.
func (w Window) Pan(fraction float64, limit Window) Window {
	shift := w.Length() * fraction
	return Window{Start: w.Start + shift, End: w.End + shift}.clamp(limit)
}

// clamp slides w inside limit, shrinking it only when it is wider.
func (w Window) clamp(limit Window) Window {
	if w.Length() >= limit.Length() {
		return limit
	}
	if w.Start < limit.Start {
		w.End += limit.Start - w.Start
		w.Start = limit.Start
	}
	if w.End > limit.End {
		w.Start -= w.End - limit.End
		w.End = limit.End
	}
	return w
}

// columns maps [start, end) onto the column range of a lane width
// columns wide. A range overlapping the window always covers at least
// one column. ok is false when the range is outside the window.
func (w Window) columns(start, end float64, width int) (first, last int, ok bool) {
	if width <= 0 || end < w.Start || start > w.End || w.Length() <= 0 {
		return 0, 0, false
	}
	scale := float64(width) / w.Length()
	first = int(math.Floor((math.Max(start, w.Start) - w.Start) * scale))
	last = int(math.Ceil((math.Min(end, w.End)-w.Start)*scale)) - 1
	first = min(max(first, 0), width-1)
	last = min(max(last, first), width-1)
	return first, last, true
}
