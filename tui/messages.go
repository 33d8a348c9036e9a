// ABOUTME: Bubble Tea message types used in the dashboard and watch message loops.
// ABOUTME: Each type wraps a data-access result or poller event for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/switchboard/dashboard"
	"github.com/2389-research/switchboard/feed"
	"github.com/2389-research/switchboard/poller"
)

// DashboardMsg carries a freshly assembled dashboard snapshot.
type DashboardMsg struct {
	Snapshot dashboard.Snapshot
}

// WorkflowUpdateMsg wraps a tracker change for the watch view.
type WorkflowUpdateMsg struct {
	Update poller.Update
}

// PollerDoneMsg signals that the watched poller reached a terminal state.
type PollerDoneMsg struct {
	State poller.State
}

// DecisionMsg carries an iteration decision request pushed by a feed.
type DecisionMsg struct {
	Request feed.DecisionRequest
}

// TickMsg is sent periodically to advance the spinner and elapsed time.
type TickMsg struct {
	Time time.Time
}
