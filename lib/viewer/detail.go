// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ut/lib/timeline"
)

// detailHeaderLines is the height of the fixed summary above the span
// list.
const detailHeaderLines = 2

// DetailPane lists the selected thread's spans in a scrollable
// viewport below a fixed summary line.
type DetailPane struct {
	viewport viewport.Model
	theme    Theme
	width    int
	height   int

	header string

	// unit formats span start times, chosen from the capture extent so
	// every thread uses the same one.
	unit timeline.Unit

	hasTimeline bool
	timeline    timeline.ThreadTimeline
}

// NewDetailPane creates an empty pane whose start times are formatted
// for a capture extent seconds long.
func NewDetailPane(theme Theme, extent float64) DetailPane {
	return DetailPane{
		theme: theme,
		unit:  timeline.PickUnit(extent / 2),
	}
}

func (pane DetailPane) bodyHeight() int {
	return max(pane.height-detailHeaderLines, 1)
}

// contentWidth leaves a padding column and a scrollbar column.
func (pane DetailPane) contentWidth() int {
	return max(pane.width-2, 1)
}

// SetSize resizes the pane, re-rendering at the new width.
func (pane *DetailPane) SetSize(width, height int) {
	pane.width = width
	pane.height = height
	pane.viewport.Width = pane.contentWidth()
	pane.viewport.Height = pane.bodyHeight()
	if pane.hasTimeline {
		pane.render()
	}
}

// SetTimeline shows a thread, scrolling back to its first span.
func (pane *DetailPane) SetTimeline(thread timeline.ThreadTimeline) {
	pane.hasTimeline = true
	pane.timeline = thread
	pane.render()
	pane.viewport.GotoTop()
}

func (pane *DetailPane) render() {
	thread := pane.timeline
	width := pane.contentWidth()

	summary := fmt.Sprintf("%s  pid %d  tid %d  %d spans", thread.Label, thread.PID, thread.TID, len(thread.Spans))
	if thread.Unbalanced > 0 {
		summary += fmt.Sprintf("  %d unbalanced", thread.Unbalanced)
	}
	if thread.Open > 0 {
		summary += fmt.Sprintf("  %d open", thread.Open)
	}
	summaryStyle := lipgloss.NewStyle().Foreground(pane.theme.HeaderForeground).Bold(true)
	if thread.Exited {
		summary += "  (exited)"
		summaryStyle = summaryStyle.Foreground(pane.theme.Warning)
	}
	columns := fmt.Sprintf("%12s %12s %5s %9s  %s", "start", "duration", "depth", "cpu", "task")
	pane.header = summaryStyle.Render(ansi.Truncate(summary, width, "…")) + "\n" +
		lipgloss.NewStyle().Foreground(pane.theme.FaintText).Render(ansi.Truncate(columns, width, "…"))

	lines := make([]string, 0, len(thread.Spans))
	for _, span := range thread.Spans {
		start := pane.unit.Format(span.Start)
		if span.Implicit {
			start = "~" + start
		}
		line := fmt.Sprintf("%12s %12s %5d %4d→%-4d %s%s",
			start,
			timeline.FormatDuration(span.Duration()),
			span.Depth,
			span.CPUStart, span.CPUEnd,
			strings.Repeat("  ", span.Depth),
			span.Name)
		line = ansi.Truncate(line, width, "…")
		lines = append(lines, lipgloss.NewStyle().Foreground(pane.theme.SpanColor(span.Task)).Render(line))
	}
	if len(lines) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(pane.theme.FaintText).Render("No spans."))
	}
	pane.viewport.SetContent(strings.Join(lines, "\n"))
}

// LineUp scrolls the span list up by count lines.
func (pane *DetailPane) LineUp(count int) { pane.viewport.LineUp(count) }

// LineDown scrolls the span list down by count lines.
func (pane *DetailPane) LineDown(count int) { pane.viewport.LineDown(count) }

// PageUp scrolls up by one viewport height.
func (pane *DetailPane) PageUp() {
	pane.viewport.SetYOffset(pane.viewport.YOffset - pane.viewport.Height)
}

// PageDown scrolls down by one viewport height.
func (pane *DetailPane) PageDown() {
	pane.viewport.SetYOffset(pane.viewport.YOffset + pane.viewport.Height)
}

// View renders the pane.
func (pane DetailPane) View(focused bool) string {
	if !pane.hasTimeline {
		return lipgloss.NewStyle().Width(pane.width).Height(pane.height).Render("")
	}
	bodyHeight := pane.bodyHeight()
	body := lipgloss.NewStyle().PaddingLeft(1).Width(pane.width - 1).Height(bodyHeight).
		Render(pane.viewport.View())
	scrollbar := renderScrollbar(pane.theme, bodyHeight,
		pane.viewport.TotalLineCount(), pane.viewport.Height, pane.viewport.YOffset, focused)
	header := lipgloss.NewStyle().PaddingLeft(1).Render(pane.header)
	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, body, scrollbar)
}
