// Package keymap holds the key bindings shared by the interactive prompts.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap lists the bindings of a single-choice list prompt.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	First  key.Binding
	Last   key.Binding
	Select key.Binding

	// Jump selects the entry with the typed one-based number.
	Jump key.Binding

	// Quit aborts without choosing.
	Quit key.Binding
	Help key.Binding
}

// DefaultKeyMap returns the bindings used by the port picker.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		First: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "first"),
		),
		Last: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "last"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "pick by number"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.First, k.Last},
		{k.Select, k.Jump},
		{k.Help, k.Quit},
	}
}

// JumpIndex converts a Jump key such as "3" into a zero-based index.
// It reports false for keys outside 1-9.
func JumpIndex(keyStr string) (int, bool) {
	if len(keyStr) != 1 || keyStr[0] < '1' || keyStr[0] > '9' {
		return 0, false
	}
	return int(keyStr[0] - '1'), true
}
