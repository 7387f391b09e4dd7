// Package console renders what the shell shows the user: the prompt and
// diagnostics.
package console

import "github.com/charmbracelet/lipgloss"

// Theme centralizes the shell's styling.
type Theme struct {
	User       lipgloss.Style
	Cwd        lipgloss.Style
	TickOK     lipgloss.Style
	TickFailed lipgloss.Style
	Error      lipgloss.Style
	Dim        lipgloss.Style
}

// NewDefaultTheme styles for r, which decides whether colors are emitted at
// all. ANSI colors are used so the palette follows the terminal's.
func NewDefaultTheme(r *lipgloss.Renderer) Theme {
	green := lipgloss.Color("2")
	red := lipgloss.Color("1")

	return Theme{
		User:       r.NewStyle().Foreground(lipgloss.Color("4")),
		Cwd:        r.NewStyle().Foreground(green),
		TickOK:     r.NewStyle().Foreground(green).Bold(true),
		TickFailed: r.NewStyle().Foreground(red).Bold(true),
		Error:      r.NewStyle().Foreground(red),
		Dim:        r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
