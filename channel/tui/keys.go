package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the panel shortcuts.
type KeyMap struct {
	Submit   key.Binding
	Toggle   key.Binding
	Minimize key.Binding
	Close    key.Binding
	Dismiss  key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "toggle"),
		),
		Minimize: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "minimize"),
		),
		Close: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("C-w", "close"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "dismiss notice"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp renders the bindings as a single hint line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Toggle, k.Minimize, k.Close, k.Dismiss, k.Quit}
}
