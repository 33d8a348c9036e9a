// ABOUTME: Implements a single-line status bar for the bottom of the watch view showing workflow progress.
// ABOUTME: Displays workflow id, status, completion, task counts, elapsed time, and age of the last poll.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/switchboard/resource"
)

// StatusBarModel displays workflow status in a single line.
type StatusBarModel struct {
	workflowID string
	startTime  time.Time
	snapshot   resource.WorkflowSnapshot
	hasData    bool
	lastPoll   time.Time
	frame      int
	width      int
}

// NewStatusBarModel creates a StatusBarModel for workflowID.
func NewStatusBarModel(workflowID string) StatusBarModel {
	return StatusBarModel{workflowID: workflowID}
}

// Start records the watch start time.
func (m *StatusBarModel) Start() {
	m.startTime = time.Now()
}

// SetSnapshot replaces the displayed workflow snapshot.
func (m *StatusBarModel) SetSnapshot(s resource.WorkflowSnapshot) {
	m.snapshot = s
	m.hasData = true
}

// SetLastPoll records when the poller last completed a tick.
func (m *StatusBarModel) SetLastPoll(t time.Time) {
	m.lastPoll = t
}

// AdvanceSpinner moves the running indicator one frame.
func (m *StatusBarModel) AdvanceSpinner() {
	m.frame = (m.frame + 1) % len(SpinnerFrames)
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start() was called, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed formats a duration as "12s" under a minute and "2m30s" otherwise.
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// formatTaskCounts renders counts as "COMPLETED=2 PENDING=1" in key order.
func formatTaskCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "no tasks"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	status := "waiting"
	if m.hasData {
		status = m.snapshot.Status
		if resource.NormalizeStatus(status) == resource.StatusInProgress {
			status = SpinnerFrames[m.frame] + " " + status
		}
	}

	polled := "never"
	if !m.lastPoll.IsZero() {
		polled = formatElapsed(time.Since(m.lastPoll)) + " ago"
	}

	content := fmt.Sprintf("Workflow: %s | %s | %.0f%% | %s | Elapsed: %s | Polled: %s",
		m.workflowID, status, m.snapshot.CompletionPercentage,
		formatTaskCounts(m.snapshot.TaskCounts), formatElapsed(m.Elapsed()), polled)

	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
