// ABOUTME: Registry of poll sessions keyed by workflow id, at most one active session per workflow.
// ABOUTME: Starting a session for a watched workflow cancels the previous session first.
package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is one poll of one workflow.
type Session struct {
	ID         string
	WorkflowID string
	StartedAt  time.Time
	Poller     *Poller
}

// Tracker returns the session's tracker.
func (s *Session) Tracker() *Tracker {
	return s.Poller.Tracker()
}

// LastPoll returns when the session last completed a tick.
func (s *Session) LastPoll() time.Time {
	return s.Poller.LastPoll()
}

// Registry owns the poll sessions of a process.
type Registry struct {
	source   Source
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry whose pollers read from source every interval.
func NewRegistry(source Source, interval time.Duration) *Registry {
	return &Registry{
		source:   source,
		interval: interval,
		sessions: make(map[string]*Session),
	}
}

// Start begins polling workflowID, stopping any session already polling it.
// The session lives until its workflow finishes, Stop is called, or ctx is
// cancelled; callers must not pass a request-scoped ctx.
func (r *Registry) Start(ctx context.Context, workflowID string, onChange func(Update)) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[workflowID]; ok {
		prev.Poller.Stop()
	}

	p := New(workflowID, r.source, NewTracker(workflowID, onChange), r.interval)
	s := &Session{
		ID:         ulid.Make().String(),
		WorkflowID: workflowID,
		StartedAt:  time.Now(),
		Poller:     p,
	}
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	r.sessions[workflowID] = s
	return s, nil
}

// Get returns the latest session for workflowID, running or finished.
func (r *Registry) Get(workflowID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[workflowID]
	return s, ok
}

// Stop cancels and forgets the session for workflowID. It reports whether a
// session existed.
func (r *Registry) Stop(workflowID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[workflowID]
	delete(r.sessions, workflowID)
	r.mu.Unlock()

	if ok {
		s.Poller.Stop()
	}
	return ok
}

// StopAll cancels every session.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Poller.Stop()
	}
}

// Active returns the ids of workflows whose poller is still running, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.sessions {
		if s.Poller.State() == StateRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
