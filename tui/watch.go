// ABOUTME: WatchModel is the Bubble Tea view bound to one workflow poller.
// ABOUTME: Mirrors the poller's tracker into detail, log, and status bar panels and stops the poller on exit.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/switchboard/poller"
)

// DefaultTickInterval drives the spinner and the tracker resync.
const DefaultTickInterval = 250 * time.Millisecond

// WatchModel renders the live state of one polled workflow.
type WatchModel struct {
	poller  *poller.Poller
	tracker *poller.Tracker

	detail    DetailPanelModel
	log       LogPanelModel
	statusBar StatusBarModel
	decision  DecisionPanelModel

	tickInterval time.Duration
	logsSeen     int
	done         bool
	final        poller.State
	width        int
	height       int
}

// NewWatchModel creates a WatchModel for a started poller.
func NewWatchModel(p *poller.Poller) WatchModel {
	sb := NewStatusBarModel(p.WorkflowID())
	sb.Start()
	m := WatchModel{
		poller:       p,
		tracker:      p.Tracker(),
		detail:       NewDetailPanelModel(),
		log:          NewLogPanelModel(500),
		statusBar:    sb,
		decision:     NewDecisionPanelModel(),
		tickInterval: DefaultTickInterval,
	}
	m.sync()
	return m
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		WaitForPollerCmd(m.poller),
		TickCmd(m.tickInterval),
	)
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case WorkflowUpdateMsg:
		if msg.Update.WorkflowID == m.poller.WorkflowID() {
			m.sync()
		}
		return m, nil

	case TickMsg:
		m.sync()
		m.statusBar.AdvanceSpinner()
		if m.done {
			return m, nil
		}
		return m, TickCmd(m.tickInterval)

	case PollerDoneMsg:
		m.done = true
		m.final = msg.State
		m.sync()
		return m, nil

	case DecisionMsg:
		m.decision.Show(msg.Request)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

// sync pulls the tracker state. The tracker only ever appends log lines, so
// anything past logsSeen is new.
func (m *WatchModel) sync() {
	if snap, ok := m.tracker.Snapshot(); ok {
		m.detail.SetSnapshot(snap)
		m.statusBar.SetSnapshot(snap)
	}
	if logs := m.tracker.Logs(); len(logs) > m.logsSeen {
		m.log.Append(logs[m.logsSeen:]...)
		m.logsSeen = len(logs)
	}
	m.statusBar.SetLastPoll(m.poller.LastPoll())
}

func (m WatchModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.poller.Stop()
		return m, tea.Quit
	case "esc":
		m.decision.Dismiss()
		return m, nil
	case "tab":
		m.log.SetFocused(!m.log.IsFocused())
		return m, nil
	}
	m.log = m.log.Update(msg)
	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	bodyHeight := m.height - 1
	detailWidth := max(m.width*40/100, 10)
	logWidth := max(m.width-detailWidth, 10)

	m.detail.SetSize(detailWidth-2, bodyHeight-2)
	m.log.SetSize(logWidth, bodyHeight)
	m.statusBar.SetWidth(m.width)

	left := m.detail.View()
	if m.decision.IsActive() {
		left = m.decision.View()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, m.log.View())

	status := m.statusBar.View()
	if m.done {
		switch m.final {
		case poller.StateCompleted:
			status += " " + CompletedStyle.Render("DONE")
		case poller.StateFailed:
			status += " " + FailedStyle.Render("FAILED")
		default:
			status += " " + PendingStyle.Render(strings.ToUpper(m.final.String()))
		}
	}

	return body + "\n" + status
}
