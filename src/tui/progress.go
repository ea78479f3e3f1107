package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sikuli-bot/src/contracts"
)

// Banner lines for the loading screen
var banner = []string{
	"┌─┐┬┬┌─┬ ┬┬  ┬  ┌┐ ┌─┐┌┬┐",
	"└─┐│├┴┐│ ││  │──├┴┐│ │ │ ",
	"└─┘┴┴ ┴└─┘┴─┘┴  └─┘└─┘ ┴ ",
}

// Gradient colors from light (top) to dark (bottom)
var bannerGradientColors = []string{
	"#5DADE2",
	"#3498DB",
	"#2874A6",
}

// Spinner frames for the loading animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// runStages orders the stages a run passes through.
var runStages = []string{
	contracts.StageScan,
	contracts.StageResolve,
	contracts.StageFetch,
	contracts.StageInstall,
	contracts.StageTest,
	contracts.StageArchive,
	contracts.StageReport,
	contracts.StageDone,
}

// ProgressMsg updates progress display
type ProgressMsg struct {
	Stage   string
	Current int
	Total   int
}

// ProgressFromEvent maps a run event to its position among the run stages.
func ProgressFromEvent(ev contracts.RunEvent) ProgressMsg {
	msg := ProgressMsg{Stage: ev.Stage, Total: len(runStages)}
	for i, s := range runStages {
		if s == ev.Stage {
			msg.Current = i + 1
		}
	}
	if ev.BuildName != "" {
		msg.Stage = fmt.Sprintf("%s %s", ev.BuildName, ev.Stage)
	}
	if ev.Stage == contracts.StageDone {
		msg.Stage = "complete"
	}
	return msg
}

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

type ProgressModel struct {
	stage        string
	current      int
	total        int
	done         bool
	spinnerFrame int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{spinnerFrame: 0}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		wasDone := m.done
		m.stage = msg.Stage
		m.current = msg.Current
		m.total = msg.Total
		m.done = msg.Stage == "complete"
		// A new run restarts the spinner
		if wasDone && !m.done {
			return m, SpinnerTick()
		}
	case SpinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.done {
			return m, SpinnerTick()
		}
	}
	return m, nil
}

// Line renders the status line alone, for the header.
func (m ProgressModel) Line() string {
	if m.done {
		return "✓ Complete"
	}

	spinner := spinnerFrames[m.spinnerFrame]
	switch {
	case m.total > 0:
		pct := float64(m.current) / float64(m.total) * 100
		return fmt.Sprintf("%s %s (%d/%d, %.0f%%)", spinner, m.stage, m.current, m.total, pct)
	case m.stage != "":
		return fmt.Sprintf("%s %s...", spinner, m.stage)
	}
	return fmt.Sprintf("%s Loading...", spinner)
}

func (m ProgressModel) View() string {
	var bannerLines []string
	for i, line := range banner {
		color := bannerGradientColors[i%len(bannerGradientColors)]
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(color)).
			Bold(true)
		bannerLines = append(bannerLines, style.Render(line))
	}
	logo := strings.Join(bannerLines, "\n")

	if m.done {
		completeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		status := completeStyle.Render("✓ Complete! Press (r) to refresh")
		return lipgloss.JoinVertical(lipgloss.Center, logo, "", status)
	}

	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")) // Gold
	line := m.Line()
	// Color just the spinner frame
	spinner := spinnerFrames[m.spinnerFrame]
	line = spinnerStyle.Render(spinner) + strings.TrimPrefix(line, spinner)

	return lipgloss.JoinVertical(lipgloss.Center, logo, "", line)
}
