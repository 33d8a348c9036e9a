// ABOUTME: Workflow watch handlers: start and stop pollers, read their snapshot, and stream updates as SSE.
// ABOUTME: watchHub fans tracker changes out to every event stream subscribed to a workflow.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/switchboard/poller"
	"github.com/2389-research/switchboard/resource"
)

// subscriberBuffer bounds how far a slow event stream may fall behind before
// updates to it are dropped.
const subscriberBuffer = 32

// watchHub delivers tracker updates to SSE subscribers. Publishing never
// blocks the poller: a full subscriber misses the update and catches up from
// the next one, which carries the whole snapshot.
type watchHub struct {
	mu   sync.Mutex
	subs map[string]map[chan poller.Update]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{subs: make(map[string]map[chan poller.Update]struct{})}
}

func (h *watchHub) publish(u poller.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[u.WorkflowID] {
		select {
		case ch <- u:
		default:
			log.Printf("component=web action=drop_update workflow=%s", u.WorkflowID)
		}
	}
}

func (h *watchHub) subscribe(workflowID string) (<-chan poller.Update, func()) {
	ch := make(chan poller.Update, subscriberBuffer)
	h.mu.Lock()
	if h.subs[workflowID] == nil {
		h.subs[workflowID] = make(map[chan poller.Update]struct{})
	}
	h.subs[workflowID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[workflowID], ch)
		if len(h.subs[workflowID]) == 0 {
			delete(h.subs, workflowID)
		}
	}
}

// SSEEvent is a server-sent event ready for formatting and transmission.
type SSEEvent struct {
	Event string
	Data  string
}

// Format renders the event as "event: <type>\ndata: <data>\n\n".
func (e SSEEvent) Format() string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Event, e.Data)
}

func newSSEEvent(event string, v any) SSEEvent {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{"error":"failed to marshal event"}`)
	}
	return SSEEvent{Event: event, Data: string(data)}
}

type sessionResponse struct {
	SessionID  string    `json:"session_id"`
	WorkflowID string    `json:"workflow_id"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
}

type snapshotResponse struct {
	sessionResponse
	Snapshot *resource.WorkflowSnapshot `json:"snapshot,omitempty"`
	Logs     []resource.LogEntry        `json:"logs"`
	LastPoll *time.Time                 `json:"last_poll,omitempty"`
}

// currentState reads a session's tracker into a snapshot response.
func currentState(sess *poller.Session) snapshotResponse {
	resp := snapshotResponse{
		sessionResponse: describeSession(sess),
		Logs:            sess.Tracker().Logs(),
	}
	if snap, ok := sess.Tracker().Snapshot(); ok {
		resp.Snapshot = &snap
	}
	if last := sess.LastPoll(); !last.IsZero() {
		resp.LastPoll = &last
	}
	return resp
}

func describeSession(sess *poller.Session) sessionResponse {
	return sessionResponse{
		SessionID:  sess.ID,
		WorkflowID: sess.WorkflowID,
		State:      sess.Poller.State().String(),
		StartedAt:  sess.StartedAt,
	}
}

// handleWatchList returns the ids of the workflows being polled.
func (s *Server) handleWatchList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"workflows": s.watches.Active()})
}

// handleWatchStart starts polling a workflow, replacing any earlier watch on it.
func (s *Server) handleWatchStart(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	sess, err := s.watches.Start(s.ctx, workflowID, s.hub.publish)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, describeSession(sess))
}

// handleWatchStop stops polling a workflow.
func (s *Server) handleWatchStop(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	if !s.watches.Stop(workflowID) {
		writeError(w, http.StatusNotFound, "workflow is not being watched")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWatchSnapshot returns the tracker state of a watched workflow.
func (s *Server) handleWatchSnapshot(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	sess, ok := s.watches.Get(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "workflow is not being watched")
		return
	}

	writeJSON(w, http.StatusOK, currentState(sess))
}

// handleWatchEvents streams a watched workflow as server-sent events: the
// current state first, then one "update" per tracker change, then "done" when
// the workflow's poller stops. A re-watch mid-stream sends a fresh "snapshot"
// for the new session instead of ending the stream.
func (s *Server) handleWatchEvents(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	sess, ok := s.watches.Get(workflowID)
	if !ok {
		writeError(w, http.StatusNotFound, "workflow is not being watched")
		return
	}

	// Subscribe before reading the current state so no change falls between.
	updates, unsubscribe := s.hub.subscribe(workflowID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	send := func(evt SSEEvent) {
		fmt.Fprint(w, evt.Format())
		if canFlush {
			flusher.Flush()
		}
	}

	send(newSSEEvent("snapshot", currentState(sess)))

	done := sess.Poller.Done()
	for {
		select {
		case u := <-updates:
			send(updateEvent(u))
		case <-done:
			// Drain what the final tick published before reporting the end.
			for drained := false; !drained; {
				select {
				case u := <-updates:
					send(updateEvent(u))
				default:
					drained = true
				}
			}
			// A re-watch stops the old poller but the workflow is still
			// being followed; carry on with the replacement session.
			if cur, ok := s.watches.Get(workflowID); ok && cur.ID != sess.ID {
				sess = cur
				done = sess.Poller.Done()
				send(newSSEEvent("snapshot", currentState(sess)))
				continue
			}
			send(newSSEEvent("done", map[string]string{"state": sess.Poller.State().String()}))
			return
		case <-r.Context().Done():
			return
		}
	}
}

func updateEvent(u poller.Update) SSEEvent {
	return newSSEEvent("update", map[string]any{
		"snapshot": u.Snapshot,
		"new_logs": u.NewLogs,
	})
}
