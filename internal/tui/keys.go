package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Actions
	Enter         key.Binding
	Back          key.Binding
	Activate      key.Binding
	Close         key.Binding
	Copy          key.Binding
	Search        key.Binding
	Refresh       key.Binding
	ToggleStopped key.Binding
	Switcher      key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Enter, k.Back, k.Activate, k.Close, k.Copy},
		{k.Search, k.Refresh, k.ToggleStopped, k.Switcher},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home/g", "go to top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "go to bottom"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "view instances"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Activate: key.NewBinding(
			key.WithKeys("f", " "),
			key.WithHelp("f", "focus"),
		),
		Close: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy window id"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ToggleStopped: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "toggle pinned"),
		),
		Switcher: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "task switcher"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// switcherKeys maps terminal key names to the key names taskdockd binds
// switcher commands to.
var switcherKeys = map[string]string{
	"tab":       "Tab",
	"shift+tab": "shift+Tab",
	"enter":     "Return",
	"esc":       "Escape",
	"ctrl+w":    "ctrl+w",
	"right":     "Tab",
	"left":      "shift+Tab",
}

// switcherKeyName translates a key press for the remote switcher. Keys
// without a translation are passed through unchanged.
func switcherKeyName(msg tea.KeyMsg) string {
	s := msg.String()
	if name, ok := switcherKeys[s]; ok {
		return name
	}
	return s
}
