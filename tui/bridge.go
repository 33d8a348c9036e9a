// ABOUTME: Bridge connecting pollers, feeds, and the aggregator to the Bubble Tea message loop.
// ABOUTME: Provides Bridge for callback injection and tea.Cmd factories for fetches, poller completion, and ticks.
package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/switchboard/dashboard"
	"github.com/2389-research/switchboard/feed"
	"github.com/2389-research/switchboard/poller"
)

// Bridge wraps a tea.Program's Send method for injecting tracker changes and
// decision requests into the message loop. A poller usually starts before the
// program exists, so the send function is attached late; messages arriving
// before Attach are dropped and the watch view recovers them from the tracker
// on its next tick.
type Bridge struct {
	mu   sync.RWMutex
	send func(msg tea.Msg)
}

// NewBridge creates a Bridge that sends messages via the given function.
// Typically called with program.Send as the argument, or nil followed by Attach.
func NewBridge(send func(msg tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

// Attach sets the function messages are sent with.
func (b *Bridge) Attach(send func(msg tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

func (b *Bridge) deliver(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// OnChange matches the tracker change callback signature.
func (b *Bridge) OnChange(u poller.Update) {
	b.deliver(WorkflowUpdateMsg{Update: u})
}

// OnDecision matches the feed decision callback signature.
func (b *Bridge) OnDecision(d feed.DecisionRequest) {
	b.deliver(DecisionMsg{Request: d})
}

// FetchDashboardCmd returns a tea.Cmd that assembles one dashboard snapshot.
// The aggregator never fails as a whole, so the message always carries a snapshot.
func FetchDashboardCmd(ctx context.Context, agg *dashboard.Aggregator, forceRefresh bool) tea.Cmd {
	return func() tea.Msg {
		return DashboardMsg{Snapshot: agg.Snapshot(ctx, forceRefresh)}
	}
}

// WaitForPollerCmd returns a tea.Cmd that blocks until p stops and reports its final state.
func WaitForPollerCmd(p *poller.Poller) tea.Cmd {
	return func() tea.Msg {
		<-p.Done()
		return PollerDoneMsg{State: p.State()}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
