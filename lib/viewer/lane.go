// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/ut/lib/timeline"
)

// cell is one column of a lane.
type cell struct {
	set   bool
	task  uint16
	depth int
}

// laneCells lays spans out over width columns. Where spans overlap,
// the deepest wins.
func laneCells(spans []timeline.Span, window Window, width int) []cell {
	cells := make([]cell, max(width, 0))
	for _, span := range spans {
		first, last, ok := window.columns(span.Start, span.End, width)
		if !ok {
			continue
		}
		for column := first; column <= last; column++ {
			if !cells[column].set || span.Depth >= cells[column].depth {
				cells[column] = cell{set: true, task: span.Task, depth: span.Depth}
			}
		}
	}
	return cells
}

// renderLane styles cells. Outermost spans are solid; nested ones are
// shaded so a parent and child of the same color stay distinct.
func renderLane(cells []cell, theme Theme) string {
	var builder strings.Builder
	idle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	for _, cell := range cells {
		if !cell.set {
			builder.WriteString(idle.Render("·"))
			continue
		}
		glyph := "█"
		if cell.depth > 0 {
			glyph = "▓"
		}
		builder.WriteString(lipgloss.NewStyle().Foreground(theme.SpanColor(cell.task)).Render(glyph))
	}
	return builder.String()
}

// renderAxis labels the left and right edges of the window in a unit
// chosen from its length.
func renderAxis(window Window, width int, theme Theme) string {
	unit := timeline.PickUnit(window.Length() / 2)
	left := unit.Format(window.Start)
	right := unit.Format(window.End)
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().Foreground(theme.FaintText).
		Render(left + strings.Repeat(" ", gap) + right)
}
