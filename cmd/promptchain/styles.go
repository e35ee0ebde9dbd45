package main

import "github.com/charmbracelet/lipgloss"

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	systemLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))            // magenta
	dimStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray
)
