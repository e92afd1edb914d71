package cmd

import "github.com/charmbracelet/lipgloss"

// Terminal styles for command output. lipgloss degrades to plain text
// when the output is not a terminal or NO_COLOR is set.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	commandStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)
