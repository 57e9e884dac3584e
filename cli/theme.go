package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette lists the colors used by CLI output.
type Palette struct {
	Red    lipgloss.Color
	Green  lipgloss.Color
	Yellow lipgloss.Color
	Blue   lipgloss.Color
	Cyan   lipgloss.Color
	Orange lipgloss.Color
	Violet lipgloss.Color
	Gray   lipgloss.Color
}

// Theme bundles the palette with common text styles.
type Theme struct {
	Colors  Palette
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Bold    lipgloss.Style
	Accent  lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
}

// DefaultTheme is shared by help, tables and log rendering.
var DefaultTheme = newTheme(Palette{
	Red:    lipgloss.Color("#E46876"),
	Green:  lipgloss.Color("#98BB6C"),
	Yellow: lipgloss.Color("#E6C384"),
	Blue:   lipgloss.Color("#7E9CD8"),
	Cyan:   lipgloss.Color("#7AA89F"),
	Orange: lipgloss.Color("#FFA066"),
	Violet: lipgloss.Color("#957FB8"),
	Gray:   lipgloss.Color("#727169"),
})

func newTheme(p Palette) *Theme {
	return &Theme{
		Colors:  p,
		Muted:   lipgloss.NewStyle().Foreground(p.Gray),
		Italic:  lipgloss.NewStyle().Italic(true),
		Bold:    lipgloss.NewStyle().Bold(true),
		Accent:  lipgloss.NewStyle().Foreground(p.Cyan),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(p.Red),
		Warning: lipgloss.NewStyle().Foreground(p.Yellow),
		Info:    lipgloss.NewStyle().Foreground(p.Blue),
		Success: lipgloss.NewStyle().Foreground(p.Green),
	}
}

func init() {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
