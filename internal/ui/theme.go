package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7D56F4")

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(accent)

	LoadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)
)
