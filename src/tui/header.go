package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// allBranches is the branch filter that shows every run.
const allBranches = "ALL"

// Header represents the top status bar component.
type Header struct {
	summary           string
	live              string
	selectedFilter    string
	availableBranches []string
	searchQuery       string
	searchMode        bool
	styles            *StyleConfig
}

// NewHeader creates a new header with default styles
func NewHeader(summary string, availableBranches []string) Header {
	return NewHeaderWithStyles(summary, availableBranches, DefaultStyles())
}

// NewHeaderWithStyles creates a new header with custom styles
func NewHeaderWithStyles(summary string, availableBranches []string, styles *StyleConfig) Header {
	return Header{
		summary:           summary,
		selectedFilter:    allBranches,
		availableBranches: availableBranches,
		styles:            styles,
	}
}

// SetSummary replaces the history summary and the branches the filter
// cycles through. A selected branch that disappeared resets to ALL.
func (h *Header) SetSummary(summary string, availableBranches []string) {
	h.summary = summary
	h.availableBranches = availableBranches
	for _, b := range availableBranches {
		if b == h.selectedFilter {
			return
		}
	}
	h.selectedFilter = allBranches
}

// SetLive shows the stage of a run in progress; empty hides it.
func (h *Header) SetLive(live string) {
	h.live = live
}

// GetFilter returns the current filter
func (h Header) GetFilter() string {
	return h.selectedFilter
}

// CycleFilter cycles to the next filter
func (h *Header) CycleFilter() {
	filters := append([]string{allBranches}, h.availableBranches...)
	currentIndex := 0
	for i, f := range filters {
		if f == h.selectedFilter {
			currentIndex = i
			break
		}
	}
	nextIndex := (currentIndex + 1) % len(filters)
	h.selectedFilter = filters[nextIndex]
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// Render renders the header
func (h Header) Render(width int) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)

	sections := []string{
		sectionStyle.Render(h.summary),
		sectionStyle.Render(fmt.Sprintf("Branch: %s", h.selectedFilter)),
	}

	var searchText string
	if h.searchMode {
		searchText = fmt.Sprintf("Search: %s█", h.searchQuery)
	} else if h.searchQuery != "" {
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	} else {
		searchText = "[/] to search"
	}

	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	sections = append(sections, searchStyle.Render(searchText))

	if h.live != "" {
		liveStyle := lipgloss.NewStyle().Foreground(h.styles.FailedColor).Padding(0, 2)
		sections = append(sections, liveStyle.Render(h.live))
	}

	content := ansi.Truncate(lipgloss.JoinHorizontal(lipgloss.Left, sections...), width, "")

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width)

	return headerStyle.Render(content)
}
