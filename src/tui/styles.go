package tui

import (
	"github.com/charmbracelet/lipgloss"

	"sikuli-bot/src/contracts"
)

// StyleConfig holds all customizable style colors for the history UI.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// Run outcomes
	PassedColor  lipgloss.Color
	FailedColor  lipgloss.Color
	ErrorColor   lipgloss.Color
	NoTestsColor lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		PassedColor:    lipgloss.Color("#34A853"),
		FailedColor:    lipgloss.Color("#FBBC04"),
		ErrorColor:     lipgloss.Color("#EA4335"),
		NoTestsColor:   lipgloss.Color("#24C1E0"),
	}
}

// StatusColor picks the color for a run outcome.
func (s *StyleConfig) StatusColor(status contracts.RunStatus) lipgloss.Color {
	switch status {
	case contracts.StatusPassed:
		return s.PassedColor
	case contracts.StatusFailed:
		return s.FailedColor
	case contracts.StatusError:
		return s.ErrorColor
	case contracts.StatusNoTests:
		return s.NoTestsColor
	}
	return s.TextSecondary
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// PanelStyle returns a bordered panel style, highlighted when focused.
func (s *StyleConfig) PanelStyle(focused bool) lipgloss.Style {
	border := s.BorderColor
	if focused {
		border = s.AccentBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}
