// ABOUTME: Tracker holds the client-side mirror of one workflow's execution: snapshot plus log lines.
// ABOUTME: Shared by the poller and the push feeds so both converge on the same state.
package poller

import (
	"sync"

	"github.com/2389-research/switchboard/resource"
)

// Update is delivered to a Tracker's change callback.
type Update struct {
	WorkflowID string
	Snapshot   resource.WorkflowSnapshot
	// NewLogs holds only the lines first seen in this update.
	NewLogs []resource.LogEntry
}

// Tracker is safe for concurrent use. The change callback runs outside the
// lock, on the goroutine that applied the change.
type Tracker struct {
	workflowID string
	onChange   func(Update)

	mu          sync.Mutex
	snapshot    resource.WorkflowSnapshot
	hasSnapshot bool
	logs        []resource.LogEntry
	// polled counts the entries of the server's log list already taken.
	polled int
}

// NewTracker creates an empty Tracker for workflowID. onChange may be nil.
func NewTracker(workflowID string, onChange func(Update)) *Tracker {
	return &Tracker{
		workflowID: workflowID,
		onChange:   onChange,
	}
}

// WorkflowID returns the workflow this tracker mirrors.
func (t *Tracker) WorkflowID() string {
	return t.workflowID
}

// ApplySnapshot replaces the snapshot wholesale.
func (t *Tracker) ApplySnapshot(s resource.WorkflowSnapshot) {
	if s.ID == "" {
		s.ID = t.workflowID
	}
	t.mu.Lock()
	t.snapshot = s
	t.hasSnapshot = true
	t.mu.Unlock()

	t.notify(Update{WorkflowID: t.workflowID, Snapshot: s})
}

// SyncLogs takes the server's full log list for the workflow. Entries past
// the count already taken are new, so identical lines repeated by the
// server are all kept. A shorter list than before means the server reset
// its log; the count follows it down and nothing is appended.
func (t *Tracker) SyncLogs(entries []resource.LogEntry) []resource.LogEntry {
	t.mu.Lock()
	var fresh []resource.LogEntry
	if len(entries) > t.polled {
		fresh = append(fresh, entries[t.polled:]...)
		t.logs = append(t.logs, fresh...)
	}
	t.polled = len(entries)
	snap := t.snapshot
	t.mu.Unlock()

	if len(fresh) > 0 {
		t.notify(Update{WorkflowID: t.workflowID, Snapshot: snap, NewLogs: fresh})
	}
	return fresh
}

// AddLog appends one line that did not come from the server's log list,
// such as a line derived from a push event. It does not affect SyncLogs.
func (t *Tracker) AddLog(e resource.LogEntry) {
	t.mu.Lock()
	t.logs = append(t.logs, e)
	snap := t.snapshot
	t.mu.Unlock()

	t.notify(Update{WorkflowID: t.workflowID, Snapshot: snap, NewLogs: []resource.LogEntry{e}})
}

// Snapshot returns the current snapshot and whether one was ever applied.
func (t *Tracker) Snapshot() (resource.WorkflowSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot, t.hasSnapshot
}

// Logs returns a copy of every log line seen so far, in arrival order.
func (t *Tracker) Logs() []resource.LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]resource.LogEntry, len(t.logs))
	copy(out, t.logs)
	return out
}

func (t *Tracker) notify(u Update) {
	if t.onChange != nil {
		t.onChange(u)
	}
}
