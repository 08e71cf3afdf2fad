// Package tui holds the terminal front ends for the life scenarios and the
// stock-market simulator.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	resultsStyle = panelStyle.BorderForeground(lipgloss.Color("42"))
)

type commonKeys struct {
	Start key.Binding
	Quit  key.Binding
	Help  key.Binding
}

func newCommonKeys() commonKeys {
	return commonKeys{
		Start: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

func signed(text string, negative bool) string {
	if negative {
		return badStyle.Render(text)
	}
	return goodStyle.Render(text)
}
