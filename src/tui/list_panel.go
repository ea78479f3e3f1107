package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderListPanel renders the left panel with the run list
func (m MainModel) renderListPanel(width, height int) string {
	body := m.listView.Render()
	if m.listView.Len() == 0 {
		body = lipgloss.NewStyle().
			Foreground(m.styles.TextSecondary).
			Faint(true).
			Render(Truncate(m.emptyMessage(), width-2, true))
	}

	listPanel := m.styles.PanelStyle(!m.detailFocused).
		Width(width - 2).
		Height(height).
		Render(body)

	delegate := m.listView.GetDelegate()
	failHeader := fmt.Sprintf("%*s", delegate.FailWidth, "Fl")

	// Truncate to width-4 to account for padding (2 chars)
	headerText := fmt.Sprintf("S │ %-*s │ %s │ Build", len(dateLayout), "Started", failHeader)
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, listPanel)
}
