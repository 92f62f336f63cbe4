// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer's key bindings.
type KeyMap struct {
	// Up and Down move the thread cursor, or scroll the detail pane
	// when it has focus.
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Time window.
	PanLeft  key.Binding
	PanRight key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	ZoomFit  key.Binding // Reset to the whole capture.

	FocusToggle key.Binding

	Quit key.Binding
}

// DefaultKeyMap pairs vim-style keys with arrows.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	PanLeft: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "pan left"),
	),
	PanRight: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "pan right"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "zoom out"),
	),
	ZoomFit: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "fit"),
	),
	FocusToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch pane"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
