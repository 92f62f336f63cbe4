// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import "github.com/charmbracelet/lipgloss"

// Theme is the viewer's color palette, in ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// FocusAccent marks the focused pane's scrollbar thumb.
	FocusAccent lipgloss.Color

	// Warning marks exited threads and unbalanced counts.
	Warning lipgloss.Color

	// SpanColors are cycled by task index.
	SpanColors [6]lipgloss.Color
}

// SpanColor returns the lane color for a task.
func (theme Theme) SpanColor(task uint16) lipgloss.Color {
	return theme.SpanColors[int(task)%len(theme.SpanColors)]
}

// DefaultTheme is tuned for dark 256-color terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	FocusAccent: lipgloss.Color("220"), // amber
	Warning:     lipgloss.Color("208"), // orange

	SpanColors: [6]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("141"), // purple
		lipgloss.Color("220"), // amber
		lipgloss.Color("80"),  // teal
		lipgloss.Color("174"), // rose
	},
}
