package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	buttonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("63")).Foreground(lipgloss.Color("0")).Bold(true)
	filledStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	dangerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
)
