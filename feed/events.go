// ABOUTME: Decodes push-feed event envelopes and applies them to a workflow Tracker.
// ABOUTME: Shared by the WebSocket and NATS feeds so push and pull converge on the same snapshot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/2389-research/switchboard/poller"
	"github.com/2389-research/switchboard/resource"
	"github.com/tidwall/gjson"
)

// Event names emitted on a workflow channel.
const (
	EventSubscribed               = "subscribed"
	EventUpdate                   = "update"
	EventTaskUpdate               = "task_update"
	EventIterationDecisionRequest = "iteration_decision_request"
)

// ErrMalformedEvent reports a message that is not a JSON event envelope.
var ErrMalformedEvent = errors.New("malformed feed event")

// Feed streams one workflow's events into a Handler until ctx is cancelled.
type Feed interface {
	Run(ctx context.Context, workflowID string) error
}

// DecisionRequest asks the operator to decide whether an iterating workflow
// should continue.
type DecisionRequest struct {
	WorkflowID string
	Iteration  int
	Prompt     string
	Options    []string
	Raw        []byte
}

// Handler applies decoded events to a Tracker.
type Handler struct {
	tracker    *poller.Tracker
	onDecision func(DecisionRequest)
	now        func() time.Time
}

// NewHandler creates a Handler writing into tracker. onDecision may be nil, in
// which case decision requests are only logged.
func NewHandler(tracker *poller.Tracker, onDecision func(DecisionRequest)) *Handler {
	return &Handler{tracker: tracker, onDecision: onDecision, now: time.Now}
}

// Handle decodes one {event, data} message and applies it. Unknown events are
// logged and ignored.
func (h *Handler) Handle(msg []byte) error {
	if !gjson.ValidBytes(msg) {
		return ErrMalformedEvent
	}
	root := gjson.ParseBytes(msg)
	name := root.Get("event")
	if !name.Exists() {
		name = root.Get("type")
	}
	if name.Type != gjson.String || name.Str == "" {
		return fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	data := root.Get("data")
	workflowID := h.tracker.WorkflowID()

	switch name.Str {
	case EventSubscribed:
		log.Printf("component=feed action=subscribed workflow=%s channel=%q", workflowID, data.Get("channel").String())
	case EventUpdate:
		snap, err := resource.DecodeWorkflowSnapshot(workflowID, []byte(dataOrRoot(data)))
		if err != nil {
			return fmt.Errorf("%w: update: %v", ErrMalformedEvent, err)
		}
		if snap.LastUpdated.IsZero() {
			snap.LastUpdated = h.now()
		}
		h.tracker.ApplySnapshot(snap)
	case EventTaskUpdate:
		h.tracker.AddLog(h.taskLogLine(data))
	case EventIterationDecisionRequest:
		req := DecisionRequest{
			WorkflowID: stringOr(data.Get("workflow_id").String(), workflowID),
			Iteration:  int(data.Get("iteration").Int()),
			Prompt:     firstOf(data, "prompt", "question", "message"),
			Raw:        []byte(data.Raw),
		}
		for _, o := range data.Get("options").Array() {
			req.Options = append(req.Options, o.String())
		}
		if h.onDecision != nil {
			h.onDecision(req)
		} else {
			log.Printf("component=feed action=decision_unhandled workflow=%s iteration=%d", workflowID, req.Iteration)
		}
	default:
		log.Printf("component=feed action=unknown_event workflow=%s event=%q", workflowID, name.Str)
	}
	return nil
}

// taskLogLine turns a task_update payload into a synthetic log line.
func (h *Handler) taskLogLine(data gjson.Result) resource.LogEntry {
	desc := firstOf(data, "description", "task_id", "id")
	status := resource.NormalizeStatus(data.Get("status").String())
	kind := "info"
	switch status {
	case resource.StatusCompleted:
		kind = "success"
	case resource.StatusFailed:
		kind = "error"
	}
	msg := fmt.Sprintf("task %s is %s", desc, strings.ToLower(status))
	if m := data.Get("message").String(); m != "" {
		msg += ": " + m
	}
	ts := data.Get("timestamp").String()
	if ts == "" {
		ts = h.now().UTC().Format(time.RFC3339Nano)
	}
	return resource.LogEntry{Timestamp: ts, Type: kind, Message: msg}
}

func dataOrRoot(data gjson.Result) string {
	if data.Exists() {
		return data.Raw
	}
	return "{}"
}

func firstOf(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := r.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
