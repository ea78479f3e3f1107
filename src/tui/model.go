// Package tui is the terminal viewer for sikuli-bot run history. The left
// panel lists runs newest first; the right panel shows the selected run's
// resolution, error and failing tests. With an event stream attached the
// header follows the run in progress and the history reloads when it ends.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"sikuli-bot/src/contracts"
)

// Status is the loading state of the history.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
)

// Loader fetches the run history, newest first.
type Loader func() ([]contracts.RunRecord, error)

// RunsMsg carries a loaded history.
type RunsMsg struct {
	Runs []contracts.RunRecord
	Err  error
}

// RunEventMsg carries one event from the stream.
type RunEventMsg contracts.RunEvent

type eventsClosedMsg struct{}

// MainModel is the Bubble Tea model for the history viewer.
type MainModel struct {
	items          []Item
	listView       View
	detailViewport viewport.Model
	header         Header
	progress       ProgressModel
	styles         *StyleConfig

	status        Status
	err           error
	ready         bool
	width         int
	height        int
	detailFocused bool
	searchMode    bool
	searchQuery   string
	spinning      bool

	load   Loader
	events <-chan contracts.RunEvent
}

// NewMainModel creates the viewer. events may be nil.
func NewMainModel(load Loader, events <-chan contracts.RunEvent) MainModel {
	styles := DefaultStyles()
	return MainModel{
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		header:         NewHeaderWithStyles("Loading...", nil, styles),
		progress:       NewProgressModel(),
		styles:         styles,
		status:         StatusLoading,
		spinning:       true,
		load:           load,
		events:         events,
	}
}

// Start runs the viewer until the user quits.
func Start(load Loader, events <-chan contracts.RunEvent) error {
	p := tea.NewProgram(NewMainModel(load, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func loadRuns(load Loader) tea.Cmd {
	return func() tea.Msg {
		runs, err := load()
		return RunsMsg{Runs: runs, Err: err}
	}
}

func waitForEvent(events <-chan contracts.RunEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return RunEventMsg(ev)
	}
}

// Init starts loading the history and listening for events.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(loadRuns(m.load), SpinnerTick(), waitForEvent(m.events))
}

// Update handles messages and updates the model state.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case RunsMsg:
		m.setRuns(msg.Runs, msg.Err)
		return m, nil

	case RunEventMsg:
		m.progress, _ = m.progress.Update(ProgressFromEvent(contracts.RunEvent(msg)))
		m.header.SetLive(m.progress.Line())
		if !m.spinning && !m.progress.done {
			m.spinning = true
			cmds = append(cmds, SpinnerTick())
		}
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Stage == contracts.StageDone {
			cmds = append(cmds, loadRuns(m.load))
		}
		return m, tea.Batch(cmds...)

	case eventsClosedMsg:
		m.header.SetLive("")
		return m, nil

	case SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		if m.status == StatusReady && m.progress.stage == "" {
			// History loaded and no run in progress: nothing to animate
			cmd = nil
		}
		m.spinning = cmd != nil
		if m.progress.stage != "" {
			m.header.SetLive(m.progress.Line())
		}
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			m.updateSearch(msg)
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, loadRuns(m.load)
		case "/":
			m.searchMode = true
			m.header.SetSearch(m.searchQuery, true)
			return m, nil
		case "tab":
			m.header.CycleFilter()
			m.applyFilter()
			return m, nil
		case "enter":
			if m.listView.Len() > 0 {
				m.detailFocused = true
			}
			return m, nil
		case "esc":
			m.detailFocused = false
			return m, nil
		}

		if m.detailFocused {
			var cmd tea.Cmd
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			return m, cmd
		}

		before := m.listView.Index()
		var cmd tea.Cmd
		m.listView, cmd = m.listView.Update(msg)
		if m.listView.Index() != before {
			if selected, ok := m.listView.GetSelectedItem(); ok {
				m.updateDetailContent(selected)
			}
		}
		return m, cmd
	}

	return m, nil
}

// updateSearch edits the query while search mode is on. Enter keeps the
// query, Esc clears it.
func (m *MainModel) updateSearch(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searchMode = false
	case tea.KeyEsc:
		m.searchMode = false
		m.searchQuery = ""
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.searchQuery += " "
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
	default:
		return
	}
	m.header.SetSearch(m.searchQuery, m.searchMode)
	m.applyFilter()
}

// setRuns replaces the history shown.
func (m *MainModel) setRuns(runs []contracts.RunRecord, err error) {
	m.status = StatusReady
	m.err = err
	if err != nil {
		m.header.SetSummary(fmt.Sprintf("Failed to load history: %v", err), nil)
		return
	}

	m.items = make([]Item, len(runs))
	branchSet := make(map[string]bool)
	failing := 0
	for i, r := range runs {
		m.items[i] = Item{Run: r}
		if r.Branch != "" {
			branchSet[r.Branch] = true
		}
		if r.Status == contracts.StatusFailed || r.Status == contracts.StatusError {
			failing++
		}
	}

	branches := make([]string, 0, len(branchSet))
	for b := range branchSet {
		branches = append(branches, b)
	}
	sort.Strings(branches)

	m.header.SetSummary(fmt.Sprintf("%d runs, %d failing", len(runs), failing), branches)
	m.applyFilter()
}

// emptyMessage explains an empty list.
func (m MainModel) emptyMessage() string {
	switch {
	case m.err != nil:
		return m.err.Error()
	case len(m.items) == 0:
		return "No runs recorded yet"
	case m.searchQuery != "" || m.header.GetFilter() != allBranches:
		return "No runs match " + strings.TrimSpace(m.header.GetFilter()+" "+m.searchQuery)
	}
	return ""
}
