// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour palette for terminal output.
type Theme struct {
	// Primary is the main accent colour, used for titles and the cursor.
	Primary lipgloss.Color

	// Secondary colours addresses and secondary headers.
	Secondary lipgloss.Color

	// Foreground is the default text colour.
	Foreground lipgloss.Color

	// Muted is for less important text.
	Muted lipgloss.Color

	// Success, Warning and Error colour outcomes.
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	// GradientStart and GradientEnd colour the progress bar.
	GradientStart string
	GradientEnd   string
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:       lipgloss.Color("#E7352C"), // Red
		Secondary:     lipgloss.Color("#4FB3D9"), // Blue
		Foreground:    lipgloss.Color("#E6E6E6"), // Light gray
		Muted:         lipgloss.Color("#808080"), // Medium gray
		Success:       lipgloss.Color("#6BCB77"), // Green
		Warning:       lipgloss.Color("#FFD93D"), // Yellow
		Error:         lipgloss.Color("#FF6B6B"), // Light red
		GradientStart: "#E7352C",
		GradientEnd:   "#FFB347",
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	// Title style for headers.
	Title lipgloss.Style

	// Address style for flash offsets.
	Address lipgloss.Style

	// Normal style for regular text.
	Normal lipgloss.Style

	// Muted style for less important text.
	Muted lipgloss.Style

	// Selected style for the highlighted list entry.
	Selected lipgloss.Style

	// Error, Success and Warning styles for outcomes.
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	// Help style for key help.
	Help lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Address: lipgloss.NewStyle().
			Foreground(theme.Secondary),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Success: lipgloss.NewStyle().
			Foreground(theme.Success),

		Warning: lipgloss.NewStyle().
			Foreground(theme.Warning),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
