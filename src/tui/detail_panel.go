package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"sikuli-bot/src/contracts"
)

// renderDetail renders the detail content for a run
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	run := item.Run
	content := strings.Builder{}

	labelStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Bold(true)
	textStyle := lipgloss.NewStyle().Foreground(m.styles.TextPrimary)
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintln(&content, textStyle.Render(Wrap(label+": "+value, maxWidth)))
	}

	statusLine := fmt.Sprintf("%s %s", item.Glyph(), run.Status)
	if run.Status == contracts.StatusError && run.Stage != "" {
		statusLine += " during " + run.Stage
	}
	fmt.Fprintf(&content, "%s\n\n", lipgloss.NewStyle().
		Foreground(m.styles.StatusColor(run.Status)).
		Bold(true).
		Render(Wrap(statusLine, maxWidth)))

	field("Installer", run.Installer)
	field("Branch", run.Branch)
	field("Source", source(run))
	field("Started", run.StartedAt.Format("2006-01-02 15:04:05"))
	if d := run.Duration(); d > 0 {
		field("Duration", d.Round(time.Second).String())
	}
	field("Log", run.LogPath)
	fmt.Fprintln(&content)

	if run.Error != "" {
		errStyle := lipgloss.NewStyle().Foreground(m.styles.ErrorColor)
		fmt.Fprintln(&content, errStyle.Bold(true).Render("Error:"))
		fmt.Fprintln(&content, errStyle.Render(Wrap(ansi.Strip(run.Error), maxWidth)))
		fmt.Fprintln(&content)
	}

	if len(run.Failures) > 0 {
		fmt.Fprintln(&content, labelStyle.Render(fmt.Sprintf("Failures (%d):", len(run.Failures))))
		newStyle := lipgloss.NewStyle().Foreground(m.styles.FailedColor).Bold(true)
		for _, test := range run.Failures {
			if item.IsNew(test) {
				fmt.Fprintln(&content, newStyle.Render(Wrap(test+" (new)", maxWidth)))
				continue
			}
			fmt.Fprintln(&content, textStyle.Faint(true).Render(Wrap(test, maxWidth)))
		}
	}

	return content.String()
}

// source describes where the tested code came from.
func source(run contracts.RunRecord) string {
	if run.Remote == "" {
		return ""
	}
	s := fmt.Sprintf("%s @ %s", run.Remote, run.Ref)
	if run.PullNumber > 0 {
		s += fmt.Sprintf(" (PR #%d)", run.PullNumber)
	}
	if run.Fallback {
		s += " (fallback)"
	}
	return s
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	// 1 char padding on each side
	maxWidth := m.detailViewport.Width - 2
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	panel := m.styles.PanelStyle(m.detailFocused).
		Width(width - 2).
		Height(height)

	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render(Truncate("Run: "+selectedItem.Run.RunID, width-2, true))

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, panel.Render(m.detailViewport.View()))
	}

	placeholderRow := lipgloss.NewStyle().
		Padding(0, 1).
		Render(" ")

	empty := panel.
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render("← Select a run to view details")

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, empty)
}
