// ABOUTME: Canonical record types for platform resources and their gjson decoders.
// ABOUTME: Missing fields are defaulted here so downstream code never switches on absent values.
package resource

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// UnknownStatus replaces a missing item status.
const UnknownStatus = "unknown"

// Agent is a configured agent on the platform.
type Agent struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         string          `json:"type,omitempty"`
	ModelID      string          `json:"model_id,omitempty"`
	Capabilities []string        `json:"capabilities"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"-"`
}

func decodeAgent(r gjson.Result) Agent {
	return Agent{
		ID:           firstString(r, "id", "agent_id"),
		Name:         firstString(r, "name"),
		Description:  firstString(r, "description"),
		Type:         firstString(r, "type", "agent_type"),
		ModelID:      firstString(r, "model_id", "model"),
		Capabilities: stringSlice(r.Get("capabilities")),
		Status:       stringOr(r, UnknownStatus, "status"),
		Raw:          rawOf(r),
	}
}

// Model is a language model registered with the platform.
type Model struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Provider string          `json:"provider,omitempty"`
	Status   string          `json:"status"`
	Raw      json.RawMessage `json:"-"`
}

func decodeModel(r gjson.Result) Model {
	return Model{
		ID:       firstString(r, "id", "model_id"),
		Name:     stringOr(r, firstString(r, "id"), "name"),
		Provider: firstString(r, "provider"),
		Status:   stringOr(r, UnknownStatus, "status"),
		Raw:      rawOf(r),
	}
}

// Workflow is a workflow definition together with its last known status.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func decodeWorkflow(r gjson.Result) Workflow {
	return Workflow{
		ID:          firstString(r, "id", "workflow_id"),
		Name:        firstString(r, "name"),
		Description: firstString(r, "description", "details"),
		Status:      stringOr(r, UnknownStatus, "status"),
		Timestamp:   firstString(r, "timestamp", "updated_at", "created_at"),
		Raw:         rawOf(r),
	}
}

// Activity is one entry of the platform activity feed.
type Activity struct {
	ID          string          `json:"id"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func decodeActivity(r gjson.Result) Activity {
	return Activity{
		ID:          firstString(r, "id"),
		Type:        firstString(r, "type", "action"),
		Description: firstString(r, "description", "details", "message"),
		Status:      stringOr(r, UnknownStatus, "status"),
		Timestamp:   firstString(r, "timestamp", "created_at"),
		Raw:         rawOf(r),
	}
}

// ComponentStatus is the health of one backend component.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// parseComponentStatus splits "status: message" values; plain strings become
// a bare status. Object values are read field by field.
func parseComponentStatus(r gjson.Result) ComponentStatus {
	if r.IsObject() {
		return ComponentStatus{
			Status:  stringOr(r, UnknownStatus, "status"),
			Message: firstString(r, "message"),
		}
	}
	status, message, _ := strings.Cut(r.String(), ":")
	status = strings.TrimSpace(status)
	if status == "" {
		status = UnknownStatus
	}
	return ComponentStatus{Status: status, Message: strings.TrimSpace(message)}
}

// Health is the backend health report.
type Health struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Raw        json.RawMessage            `json:"-"`
}

// Healthy reports whether the overall status is "healthy" or "ok".
func (h Health) Healthy() bool {
	s := strings.ToLower(h.Status)
	return s == "healthy" || s == "ok"
}

func decodeHealth(r gjson.Result) Health {
	h := Health{
		Status:  stringOr(r, UnknownStatus, "status"),
		Version: firstString(r, "version"),
		Raw:     rawOf(r),
	}
	if cs := r.Get("component_status"); cs.IsObject() {
		h.Components = make(map[string]ComponentStatus)
		cs.ForEach(func(k, v gjson.Result) bool {
			h.Components[k.String()] = parseComponentStatus(v)
			return true
		})
	}
	return h
}

// TaskRecord is one task of a workflow. Dependencies name other tasks by
// description, not by id.
type TaskRecord struct {
	TaskID        string          `json:"task_id,omitempty"`
	Description   string          `json:"description"`
	Type          string          `json:"type,omitempty"`
	Priority      string          `json:"priority,omitempty"`
	Dependencies  []string        `json:"dependencies"`
	Status        string          `json:"status"`
	Parameters    json.RawMessage `json:"parameters,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	AssignedAgent string          `json:"assigned_agent,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

func decodeTask(r gjson.Result) TaskRecord {
	return TaskRecord{
		TaskID:        firstString(r, "task_id", "id"),
		Description:   firstString(r, "description"),
		Type:          firstString(r, "type"),
		Priority:      firstString(r, "priority"),
		Dependencies:  stringSlice(r.Get("dependencies")),
		Status:        stringOr(r, UnknownStatus, "status"),
		Parameters:    rawOf(r.Get("parameters")),
		Result:        rawOf(r.Get("result")),
		AssignedAgent: firstString(r, "assigned_agent", "agent_id"),
		CreatedAt:     firstString(r, "created_at"),
		UpdatedAt:     firstString(r, "updated_at"),
	}
}

// Workflow execution statuses as declared by the backend.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusUnknown    = "UNKNOWN"
)

// NormalizeStatus maps backend spellings onto the canonical execution
// statuses. Unrecognized values are upper-cased and kept.
func NormalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "":
		return StatusUnknown
	case "RUNNING", "STARTED", "EXECUTING":
		return StatusInProgress
	case "QUEUED", "CREATED":
		return StatusPending
	case "SUCCEEDED", "SUCCESS", "DONE":
		return StatusCompleted
	case "ERROR", "ERRORED":
		return StatusFailed
	}
	return s
}

// IsTerminal reports whether status ends a workflow execution.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// WorkflowSnapshot mirrors the server-declared execution state of a workflow.
type WorkflowSnapshot struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	CompletionPercentage float64        `json:"completion_percentage"`
	TaskCounts           map[string]int `json:"task_counts"`
	LastUpdated          time.Time      `json:"last_updated"`
	Error                string         `json:"error,omitempty"`
}

// Terminal reports whether the snapshot's status is COMPLETED or FAILED.
func (s WorkflowSnapshot) Terminal() bool {
	return IsTerminal(s.Status)
}

// DecodeWorkflowSnapshot decodes a status payload for workflow id. It is shared
// by the status read and the push feeds so both produce the same shape.
// A missing last_updated is left zero for the caller to stamp.
func DecodeWorkflowSnapshot(id string, payload []byte) (WorkflowSnapshot, error) {
	if !gjson.ValidBytes(payload) {
		return WorkflowSnapshot{}, ErrMalformedResponse
	}
	return decodeSnapshot(id, unwrapObject(payload, "workflow_status")), nil
}

func decodeSnapshot(id string, r gjson.Result) WorkflowSnapshot {
	snap := WorkflowSnapshot{
		ID:         stringOr(r, id, "workflow_id", "id"),
		Status:     NormalizeStatus(firstString(r, "status")),
		TaskCounts: make(map[string]int),
		Error:      firstString(r, "error", "error_message"),
	}
	for _, p := range []string{"completion_percentage", "progress"} {
		if v := r.Get(p); v.Type == gjson.Number {
			snap.CompletionPercentage = v.Float()
			break
		}
	}
	r.Get("task_status").ForEach(func(k, v gjson.Result) bool {
		snap.TaskCounts[NormalizeStatus(k.String())] = int(v.Int())
		return true
	})
	if ts := firstString(r, "last_updated", "updated_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			snap.LastUpdated = t
		}
	}
	return snap
}

// LogEntry is one workflow execution log line.
type LogEntry struct {
	Timestamp string `json:"timestamp,omitempty"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

func decodeLogEntry(r gjson.Result) LogEntry {
	if r.Type == gjson.String {
		return LogEntry{Type: "info", Message: r.Str}
	}
	return LogEntry{
		Timestamp: firstString(r, "timestamp", "time", "created_at"),
		Type:      stringOr(r, "info", "type", "level"),
		Message:   firstString(r, "message", "text", "msg"),
	}
}

// ModelMetrics are the measurements returned by a model test.
type ModelMetrics struct {
	Latency      float64 `json:"latency"`
	Tokens       int     `json:"tokens"`
	ModelVersion string  `json:"model_version"`
}

// ModelTestResult is the outcome of a model test prompt.
type ModelTestResult struct {
	Response string       `json:"response"`
	Metrics  ModelMetrics `json:"metrics"`
}

func decodeModelTest(r gjson.Result) ModelTestResult {
	m := r.Get("metrics")
	return ModelTestResult{
		Response: firstString(r, "response", "output", "text"),
		Metrics: ModelMetrics{
			Latency:      m.Get("latency").Float(),
			Tokens:       int(m.Get("tokens").Int()),
			ModelVersion: stringOr(m, UnknownStatus, "model_version"),
		},
	}
}

// Completion is the text produced by a generate or chat call.
type Completion struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"-"`
}

func decodeCompletion(r gjson.Result) Completion {
	return Completion{
		Text: firstString(r, "response", "text", "output", "content", "message.content", "choices.0.message.content"),
		Raw:  rawOf(r),
	}
}

// GoalConversion is the backend's decomposition of a goal into tasks.
type GoalConversion struct {
	Success    bool         `json:"success"`
	WorkflowID string       `json:"workflow_id"`
	Tasks      []TaskRecord `json:"tasks"`
	Message    string       `json:"message,omitempty"`
}

func decodeGoalConversion(r gjson.Result) GoalConversion {
	return GoalConversion{
		Success:    r.Get("success").Bool(),
		WorkflowID: firstString(r, "workflow_id", "id"),
		Tasks:      decodeAll(r.Get("tasks").Array(), decodeTask),
		Message:    firstString(r, "message", "error"),
	}
}

// Execution acknowledges a workflow execution request.
type Execution struct {
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

func decodeExecution(id string, r gjson.Result) Execution {
	return Execution{
		WorkflowID:  stringOr(r, id, "workflow_id"),
		ExecutionID: firstString(r, "execution_id", "run_id"),
		Status:      NormalizeStatus(firstString(r, "status")),
		Message:     firstString(r, "message"),
	}
}
