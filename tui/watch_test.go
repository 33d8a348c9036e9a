// ABOUTME: Tests for WatchModel, the view bound to a workflow poller.
// ABOUTME: Covers tracker resync, poller completion, decision requests, quitting, and rendering.
package tui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/switchboard/feed"
	"github.com/2389-research/switchboard/poller"
	"github.com/2389-research/switchboard/resource"
)

// fixedSource answers every poll with the same status and log lines.
type fixedSource struct {
	status string
	logs   []resource.LogEntry
	calls  atomic.Int32
}

func (s *fixedSource) WorkflowStatus(ctx context.Context, id string, opts resource.ReadOptions) (resource.WorkflowSnapshot, resource.Freshness, error) {
	s.calls.Add(1)
	return resource.WorkflowSnapshot{
		ID:                   id,
		Status:               s.status,
		CompletionPercentage: 50,
		TaskCounts:           map[string]int{"COMPLETED": 1, "PENDING": 1},
		LastUpdated:          time.Now(),
	}, resource.Freshness{}, nil
}

func (s *fixedSource) WorkflowLogs(ctx context.Context, id string, page resource.Page, opts resource.ReadOptions) (resource.List[resource.LogEntry], error) {
	return resource.List[resource.LogEntry]{Items: s.logs}, nil
}

func startPoller(t *testing.T, src *fixedSource, onChange func(poller.Update)) *poller.Poller {
	t.Helper()
	p := poller.New("wf-123", src, poller.NewTracker("wf-123", onChange), time.Hour)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func waitForTicks(t *testing.T, p *poller.Poller, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Ticks() < n {
		if time.Now().After(deadline) {
			t.Fatalf("poller did not reach %d ticks", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func completedPoller(t *testing.T) *poller.Poller {
	t.Helper()
	p := startPoller(t, &fixedSource{
		status: "COMPLETED",
		logs: []resource.LogEntry{
			{Timestamp: "2026-01-02T10:00:00Z", Type: "info", Message: "planning"},
			{Timestamp: "2026-01-02T10:00:05Z", Type: "success", Message: "all tasks done"},
		},
	}, nil)
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish")
	}
	return p
}

func TestNewWatchModelSyncsTracker(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	if m.detail.snapshot == nil || m.detail.snapshot.Status != "COMPLETED" {
		t.Fatalf("detail snapshot = %+v, want COMPLETED", m.detail.snapshot)
	}
	if m.log.Len() != 2 {
		t.Errorf("log lines = %d, want 2", m.log.Len())
	}
	if m.logsSeen != 2 {
		t.Errorf("logsSeen = %d, want 2", m.logsSeen)
	}
}

func TestWatchModelSyncDoesNotDuplicateLogs(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	updated, _ := m.Update(WorkflowUpdateMsg{Update: poller.Update{WorkflowID: "wf-123"}})
	updated, _ = updated.(WatchModel).Update(TickMsg{Time: time.Now()})
	wm := updated.(WatchModel)
	if wm.log.Len() != 2 {
		t.Errorf("log lines = %d after resync, want 2", wm.log.Len())
	}
}

func TestWatchModelIgnoresOtherWorkflows(t *testing.T) {
	p := poller.New("wf-123", &fixedSource{}, nil, time.Hour)
	m := NewWatchModel(p)
	if m.detail.snapshot != nil {
		t.Fatal("unpolled workflow should have no snapshot")
	}
	p.Tracker().ApplySnapshot(resource.WorkflowSnapshot{Status: "IN_PROGRESS"})

	updated, _ := m.Update(WorkflowUpdateMsg{Update: poller.Update{WorkflowID: "wf-other"}})
	if updated.(WatchModel).detail.snapshot != nil {
		t.Error("update for another workflow should not resync")
	}

	updated, _ = m.Update(WorkflowUpdateMsg{Update: poller.Update{WorkflowID: "wf-123"}})
	wm := updated.(WatchModel)
	if wm.detail.snapshot == nil || wm.detail.snapshot.Status != "IN_PROGRESS" {
		t.Errorf("detail snapshot = %+v, want IN_PROGRESS", wm.detail.snapshot)
	}
}

func TestWatchModelPollerDone(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	msg := WaitForPollerCmd(p)()
	done, ok := msg.(PollerDoneMsg)
	if !ok {
		t.Fatalf("WaitForPollerCmd returned %T, want PollerDoneMsg", msg)
	}
	if done.State != poller.StateCompleted {
		t.Errorf("State = %v, want completed", done.State)
	}

	updated, _ := m.Update(done)
	wm := updated.(WatchModel)
	if !wm.done {
		t.Fatal("done should be true")
	}

	_, cmd := wm.Update(TickMsg{Time: time.Now()})
	if cmd != nil {
		t.Error("ticks should stop once the poller is done")
	}

	sized, _ := wm.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	view := sized.(WatchModel).View()
	if !strings.Contains(view, "DONE") {
		t.Errorf("view should show DONE, got:\n%s", view)
	}
	if !strings.Contains(view, "all tasks done") {
		t.Errorf("view should show log lines, got:\n%s", view)
	}
}

func TestWatchModelQuitStopsPoller(t *testing.T) {
	src := &fixedSource{status: "IN_PROGRESS"}
	p := startPoller(t, src, nil)
	waitForTicks(t, p, 1)
	m := NewWatchModel(p)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit the program")
	}
	if p.State() != poller.StateCancelled {
		t.Errorf("poller state = %v, want cancelled", p.State())
	}
}

func TestWatchModelDecisionPanel(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	updated, _ := m.Update(DecisionMsg{Request: feed.DecisionRequest{
		WorkflowID: "wf-123",
		Iteration:  2,
		Prompt:     "Continue refining?",
		Options:    []string{"continue", "stop"},
	}})
	wm := updated.(WatchModel)
	if !wm.decision.IsActive() {
		t.Fatal("decision panel should be active")
	}

	sized, _ := wm.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	view := sized.(WatchModel).View()
	if !strings.Contains(view, "Iteration 2: Continue refining?") {
		t.Errorf("view should show the decision prompt, got:\n%s", view)
	}

	dismissed, _ := wm.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if dismissed.(WatchModel).decision.IsActive() {
		t.Error("esc should dismiss the decision panel")
	}
}

func TestWatchModelTabTogglesLogFocus(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if !updated.(WatchModel).log.IsFocused() {
		t.Error("tab should focus the log panel")
	}
	updated, _ = updated.(WatchModel).Update(tea.KeyMsg{Type: tea.KeyTab})
	if updated.(WatchModel).log.IsFocused() {
		t.Error("second tab should unfocus the log panel")
	}
}

func TestWatchModelViewSizeGuards(t *testing.T) {
	p := completedPoller(t)
	m := NewWatchModel(p)

	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before size = %q", got)
	}
	small, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 5})
	if got := small.(WatchModel).View(); !strings.Contains(got, "Terminal too small") {
		t.Errorf("View when small = %q", got)
	}
}

func TestBridgeDeliversPollerChanges(t *testing.T) {
	var got []tea.Msg
	bridge := NewBridge(nil)
	bridge.OnChange(poller.Update{WorkflowID: "dropped"})

	bridge.Attach(func(msg tea.Msg) { got = append(got, msg) })
	bridge.OnChange(poller.Update{WorkflowID: "wf-123"})
	bridge.OnDecision(feed.DecisionRequest{WorkflowID: "wf-123", Prompt: "pick"})

	if len(got) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(got))
	}
	if u, ok := got[0].(WorkflowUpdateMsg); !ok || u.Update.WorkflowID != "wf-123" {
		t.Errorf("first message = %#v", got[0])
	}
	if d, ok := got[1].(DecisionMsg); !ok || d.Request.Prompt != "pick" {
		t.Errorf("second message = %#v", got[1])
	}
}

func TestTickCmd(t *testing.T) {
	msg := TickCmd(time.Millisecond)()
	if _, ok := msg.(TickMsg); !ok {
		t.Errorf("TickCmd returned %T, want TickMsg", msg)
	}
}
