package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	// Breakdown: panel border (2) + list internal padding/margins (8) = 10 chars total.
	listRenderingOverhead = 10

	// dateLayout is the started-at column format.
	dateLayout = "01-02 15:04"
)

// Delegate renders run items as table rows.
type Delegate struct {
	FailWidth int
	styles    *StyleConfig
}

// NewDelegate creates a new run table delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{
		FailWidth: 2, // default minimum
		styles:    styles,
	}
}

// SetColumnWidths sizes the failure count column for maxFailures.
func (d *Delegate) SetColumnWidths(maxFailures int) {
	d.FailWidth = len(fmt.Sprintf("%d", maxFailures))
	if d.FailWidth < 2 {
		d.FailWidth = 2
	}
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	failFmt := fmt.Sprintf("%%%dd", d.FailWidth)

	dateCol := TruncateAndPad(entry.Run.StartedAt.Format(dateLayout), len(dateLayout), false)
	failCol := fmt.Sprintf(failFmt, len(entry.Run.Failures))

	// Fixed columns: glyph (1) + date + failures + separators (9)
	fixedWidth := 1 + len(dateLayout) + d.FailWidth + 9
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var build string
	if availableWidth > 0 {
		build = TruncateAndPad(entry.Title(), availableWidth, true)
	}

	glyph := lipgloss.NewStyle().Foreground(d.styles.StatusColor(entry.Run.Status)).Render(entry.Glyph())
	rest := fmt.Sprintf(" │ %s │ %s │ %s", dateCol, failCol, build)

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, glyph+style.Render(rest))
}
