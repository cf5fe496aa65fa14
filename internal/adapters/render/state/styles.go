package state

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	section  lipgloss.Style
	label    lipgloss.Style
	fact     lipgloss.Style
	player   lipgloss.Style
	item     lipgloss.Style
	warning  lipgloss.Style
	archived lipgloss.Style
	empty    lipgloss.Style
	version  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		section:  lipgloss.NewStyle().MarginTop(1),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		fact:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		player:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		item:     lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		archived: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		empty:    lipgloss.NewStyle().Faint(true),
		version:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	}
}
