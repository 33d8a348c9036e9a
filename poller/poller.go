// ABOUTME: Poller refreshes one workflow's status and logs on a fixed interval until it reaches a terminal state.
// ABOUTME: Ticks are serialized; Stop cancels the in-flight requests and is idempotent.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389-research/switchboard/resource"
)

// DefaultInterval is the delay between polls when none is configured.
const DefaultInterval = 3 * time.Second

// ErrAlreadyStarted is returned when Start is called on a poller that has left Idle.
var ErrAlreadyStarted = errors.New("poller already started")

// State is the lifecycle state of a Poller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Done reports whether s is a final state.
func (s State) Done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Source is the subset of the data-access service the poller needs.
type Source interface {
	WorkflowStatus(ctx context.Context, id string, opts resource.ReadOptions) (resource.WorkflowSnapshot, resource.Freshness, error)
	WorkflowLogs(ctx context.Context, id string, page resource.Page, opts resource.ReadOptions) (resource.List[resource.LogEntry], error)
}

// liveRead forces a transport call and never substitutes a fallback. A stale
// cache entry can still come back; the poller refuses to apply it.
var liveRead = resource.ReadOptions{ForceRefresh: true, Strict: true}

// Poller mirrors one workflow's execution into a Tracker.
type Poller struct {
	workflowID string
	source     Source
	tracker    *Tracker
	interval   time.Duration

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastPoll time.Time

	ticks atomic.Int64
	done  chan struct{}
}

// New creates an idle Poller. A non-positive interval uses DefaultInterval.
func New(workflowID string, source Source, tracker *Tracker, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if tracker == nil {
		tracker = NewTracker(workflowID, nil)
	}
	return &Poller{
		workflowID: workflowID,
		source:     source,
		tracker:    tracker,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// Start polls immediately and then every interval until a terminal status is
// observed, Stop is called, or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StateRunning
	log.Printf("component=poller action=start workflow=%s interval=%s", p.workflowID, p.interval)
	go p.run(runCtx)
	return nil
}

// Stop cancels a running poller, including any request in flight. Calling it
// again, or after the poller finished on its own, does nothing. Stop does not
// wait for the poll goroutine; use Wait for that.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateCancelled
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	log.Printf("component=poller action=stop workflow=%s ticks=%d", p.workflowID, p.ticks.Load())
}

// Done is closed when the poll goroutine exits. It is never closed for a
// poller that was not started.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the poll goroutine exits or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ticks returns the number of ticks that completed before cancellation.
func (p *Poller) Ticks() int {
	return int(p.ticks.Load())
}

// LastPoll returns when the most recent tick completed.
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

// Tracker returns the tracker the poller writes into.
func (p *Poller) Tracker() *Tracker {
	return p.tracker
}

// WorkflowID returns the polled workflow.
func (p *Poller) WorkflowID() string {
	return p.workflowID
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.finish(StateCancelled)

	if p.tick(ctx) {
		return
	}

	// Reset after each tick makes the interval a delay between polls, so a
	// slow tick delays the next one instead of overlapping it.
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if p.tick(ctx) {
				return
			}
			timer.Reset(p.interval)
		}
	}
}

// tick fetches status and logs concurrently and applies them. It returns true
// when polling must stop.
func (p *Poller) tick(ctx context.Context) bool {
	var (
		wg        sync.WaitGroup
		snap      resource.WorkflowSnapshot
		fresh     resource.Freshness
		statusErr error
		logs      resource.List[resource.LogEntry]
		logsErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap, fresh, statusErr = p.source.WorkflowStatus(ctx, p.workflowID, liveRead)
	}()
	go func() {
		defer wg.Done()
		logs, logsErr = p.source.WorkflowLogs(ctx, p.workflowID, resource.Page{}, liveRead)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return true
	}
	p.ticks.Add(1)
	p.mu.Lock()
	p.lastPoll = time.Now()
	p.mu.Unlock()

	switch {
	case logsErr != nil:
		log.Printf("component=poller action=logs_failed workflow=%s err=%v", p.workflowID, logsErr)
	case logs.Freshness.Degraded():
		log.Printf("component=poller action=logs_skipped workflow=%s source=%s", p.workflowID, logs.Freshness.Source)
	default:
		p.tracker.SyncLogs(logs.Items)
	}

	if statusErr != nil {
		log.Printf("component=poller action=status_failed workflow=%s err=%v", p.workflowID, statusErr)
		return false
	}
	if fresh.Degraded() {
		log.Printf("component=poller action=status_skipped workflow=%s source=%s", p.workflowID, fresh.Source)
		return false
	}
	p.tracker.ApplySnapshot(snap)

	switch snap.Status {
	case resource.StatusCompleted:
		p.finish(StateCompleted)
		return true
	case resource.StatusFailed:
		p.finish(StateFailed)
		return true
	}
	return false
}

// finish moves a running poller to s and releases its context.
func (p *Poller) finish(s State) {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = s
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	log.Printf("component=poller action=finish workflow=%s state=%s ticks=%d", p.workflowID, s, p.ticks.Load())
}
