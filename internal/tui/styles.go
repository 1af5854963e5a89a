// Package tui provides the interactive configuration editor and credential
// prompts of the remotefetch CLI.
package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"}
	okColor     = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	failColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	dirtyColor  = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	// PathStyle renders the config file being edited under the title
	PathStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	UnselectedStyle = lipgloss.NewStyle()

	// SummaryStyle renders the current values of a category next to its name
	SummaryStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	ModifiedStyle = lipgloss.NewStyle().
			Foreground(dirtyColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(okColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(failColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			MarginTop(1)

	ConfirmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dirtyColor).
			Padding(1, 2)
)

// GetTheme returns the huh theme used by every form
func GetTheme() *huh.Theme {
	return huh.ThemeBase16()
}

func formTheme(accessible bool) *huh.Theme {
	if accessible {
		return huh.ThemeBase()
	}
	return GetTheme()
}
