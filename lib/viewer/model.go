// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && (amd64 || arm64)

package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ut/lib/snapshot"
	"github.com/bureau-foundation/ut/lib/timeline"
)

// FocusRegion identifies which pane receives navigation keys.
type FocusRegion int

const (
	// FocusLanes means up and down move between threads.
	FocusLanes FocusRegion = iota
	// FocusDetail means up and down scroll the span list.
	FocusDetail
)

const (
	// labelWidth is the column width of thread labels in front of each
	// lane.
	labelWidth = 24

	// chromeLines counts the header, axis, two separators, and the
	// help bar.
	chromeLines = 5

	// zoomStep is the window scale applied per zoom keypress.
	zoomStep = 0.5

	// panStep is the fraction of the window shifted per pan keypress.
	panStep = 0.25
)

// Model is the bubbletea model for a loaded capture.
type Model struct {
	theme Theme
	keys  KeyMap

	source    string
	timelines []timeline.ThreadTimeline
	skipped   int
	dropped   int

	width  int
	height int
	ready  bool

	cursor       int
	scrollOffset int
	focusRegion  FocusRegion

	// full spans the whole capture; window is the visible part.
	full   Window
	window Window

	detailPane DetailPane
}

// NewModel builds a model over document. source labels the header,
// typically the capture path.
func NewModel(document *snapshot.Document, source string) Model {
	timelines := timeline.Threads(document)
	extent := timeline.Extent(timelines)
	if extent <= 0 {
		extent = minimumWindow
	}
	full := Window{Start: 0, End: extent}

	model := Model{
		theme:      DefaultTheme,
		keys:       DefaultKeyMap,
		source:     source,
		timelines:  timelines,
		skipped:    len(document.Skipped),
		dropped:    len(document.Threads) - len(timelines),
		full:       full,
		window:     full,
		detailPane: NewDetailPane(DefaultTheme, extent),
	}
	if len(timelines) > 0 {
		model.detailPane.SetTimeline(timelines[0])
	}
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.updatePaneSizes()
		model.ensureCursorVisible()

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit

		case key.Matches(message, model.keys.FocusToggle):
			if model.focusRegion == FocusLanes {
				model.focusRegion = FocusDetail
			} else {
				model.focusRegion = FocusLanes
			}

		case key.Matches(message, model.keys.ZoomIn):
			model.window = model.window.Zoom(zoomStep, model.full)
		case key.Matches(message, model.keys.ZoomOut):
			model.window = model.window.Zoom(1/zoomStep, model.full)
		case key.Matches(message, model.keys.ZoomFit):
			model.window = model.full
		case key.Matches(message, model.keys.PanLeft):
			model.window = model.window.Pan(-panStep, model.full)
		case key.Matches(message, model.keys.PanRight):
			model.window = model.window.Pan(panStep, model.full)

		default:
			if model.focusRegion == FocusDetail {
				model.handleDetailKeys(message)
			} else {
				model.handleLaneKeys(message)
			}
		}
	}
	return model, nil
}

func (model *Model) handleLaneKeys(message tea.KeyMsg) {
	previous := model.cursor
	switch {
	case key.Matches(message, model.keys.Up):
		model.cursor--
	case key.Matches(message, model.keys.Down):
		model.cursor++
	case key.Matches(message, model.keys.PageUp):
		model.cursor -= model.laneRows()
	case key.Matches(message, model.keys.PageDown):
		model.cursor += model.laneRows()
	case key.Matches(message, model.keys.Home):
		model.cursor = 0
	case key.Matches(message, model.keys.End):
		model.cursor = len(model.timelines) - 1
	}
	model.cursor = min(max(model.cursor, 0), max(len(model.timelines)-1, 0))
	model.ensureCursorVisible()
	if model.cursor != previous && len(model.timelines) > 0 {
		model.detailPane.SetTimeline(model.timelines[model.cursor])
	}
}

func (model *Model) handleDetailKeys(message tea.KeyMsg) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.detailPane.LineUp(1)
	case key.Matches(message, model.keys.Down):
		model.detailPane.LineDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.detailPane.PageUp()
	case key.Matches(message, model.keys.PageDown):
		model.detailPane.PageDown()
	case key.Matches(message, model.keys.Home):
		model.detailPane.viewport.GotoTop()
	case key.Matches(message, model.keys.End):
		model.detailPane.viewport.GotoBottom()
	}
}

// laneRows is how many lanes fit: at most half the content area, so
// the detail pane always has room.
func (model Model) laneRows() int {
	content := model.height - chromeLines
	return max(min(len(model.timelines), content/2), 1)
}

func (model Model) laneWidth() int {
	// Selection marker, label, gap, and scrollbar.
	return max(model.width-labelWidth-3, 1)
}

func (model *Model) updatePaneSizes() {
	detailHeight := max(model.height-chromeLines-model.laneRows(), detailHeaderLines+1)
	model.detailPane.SetSize(model.width, detailHeight)
}

func (model *Model) ensureCursorVisible() {
	visible := model.laneRows()
	maxOffset := max(len(model.timelines)-visible, 0)
	model.scrollOffset = min(model.scrollOffset, maxOffset)
	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+visible {
		model.scrollOffset = model.cursor - visible + 1
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	if len(model.timelines) == 0 {
		return model.renderEmpty()
	}

	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))

	sections := []string{
		model.renderHeader(),
		strings.Repeat(" ", labelWidth+2) + renderAxis(model.window, model.laneWidth(), model.theme),
		model.renderLanes(),
		separator,
		model.detailPane.View(model.focusRegion == FocusDetail),
		separator,
		model.renderHelp(),
	}
	return strings.Join(sections, "\n")
}

func (model Model) renderHeader() string {
	header := fmt.Sprintf("ut-view  %s  %d threads", model.source, len(model.timelines))
	if model.dropped > 0 {
		header += fmt.Sprintf("  %d without spans", model.dropped)
	}
	if model.skipped > 0 {
		header += fmt.Sprintf("  %d skipped", model.skipped)
	}
	return lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).
		Render(ansi.Truncate(header, model.width, "…"))
}

func (model Model) renderLanes() string {
	rows := model.laneRows()
	width := model.laneWidth()
	lines := make([]string, 0, rows)

	for row := 0; row < rows; row++ {
		index := model.scrollOffset + row
		if index >= len(model.timelines) {
			lines = append(lines, strings.Repeat(" ", labelWidth+2+width))
			continue
		}
		thread := model.timelines[index]

		marker := " "
		labelStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
		if thread.Exited {
			labelStyle = labelStyle.Foreground(model.theme.Warning)
		}
		if index == model.cursor {
			marker = lipgloss.NewStyle().Foreground(model.theme.FocusAccent).Render("▌")
			labelStyle = labelStyle.Background(model.theme.SelectedBackground).Bold(true)
		}

		label := ansi.Truncate(thread.Label, labelWidth, "…")
		label += strings.Repeat(" ", labelWidth-ansi.StringWidth(label))
		lane := renderLane(laneCells(thread.Spans, model.window, width), model.theme)
		lines = append(lines, marker+labelStyle.Render(label)+" "+lane)
	}

	scrollbar := renderScrollbar(model.theme, rows, len(model.timelines), rows,
		model.scrollOffset, model.focusRegion == FocusLanes)
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(lines, "\n"), scrollbar)
}

func (model Model) renderEmpty() string {
	return lipgloss.Place(
		model.width, model.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No task spans in this capture."),
	)
}

func (model Model) renderHelp() string {
	focusIndicator := "LANES"
	if model.focusRegion == FocusDetail {
		focusIndicator = "SPANS"
	}
	unit := timeline.PickUnit(model.window.Length() / 2)
	help := fmt.Sprintf(" [%s] q quit  ↑↓ navigate  ←→ pan  +/- zoom  0 fit  Tab focus  %d/%d  window %s",
		focusIndicator, model.cursor+1, len(model.timelines), unit.Format(model.window.Length()))
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(ansi.Truncate(help, model.width, "…"))
}
