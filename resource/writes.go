// ABOUTME: Write operations: agent management, model calls, workflow creation and execution, goal conversion.
// ABOUTME: Writes bypass the cache and return typed transport errors for the caller to show verbatim.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389-research/switchboard/api"
	"github.com/tidwall/gjson"
)

// ErrGoalRejected reports a goal conversion the backend answered with success=false.
var ErrGoalRejected = errors.New("goal conversion rejected")

// AgentSpec is the writable part of an agent.
type AgentSpec struct {
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	Type         string         `json:"type,omitempty"`
	ModelID      string         `json:"model_id,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

// WorkflowSpec describes a workflow to create.
type WorkflowSpec struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Steps       []map[string]any `json:"steps,omitempty"`
}

// ChatMessage is one turn of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest asks a model for a single completion.
type GenerateRequest struct {
	ModelID    string         `json:"model_id,omitempty"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ChatRequest asks a model to continue a conversation.
type ChatRequest struct {
	ModelID    string         `json:"model_id,omitempty"`
	Messages   []ChatMessage  `json:"messages"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// GoalRequest is a free-text goal to decompose into tasks.
type GoalRequest struct {
	Goal    string `json:"goal"`
	Context string `json:"context"`
}

func invalid(endpoint, message string) error {
	return &api.InvalidRequestError{APIError: api.APIError{
		Kind:     api.KindInvalidRequest,
		Message:  message,
		Endpoint: endpoint,
	}}
}

func (s *Service) write(ctx context.Context, req api.Request) (gjson.Result, error) {
	payload, err := s.send(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(payload), nil
}

func agentPath(id string) string {
	return "/agents/" + url.PathEscape(id)
}

// CreateAgent registers a new agent.
func (s *Service) CreateAgent(ctx context.Context, spec AgentSpec) (Agent, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Agent{}, invalid("POST /agents", "agent name is required")
	}
	r, err := s.write(ctx, api.Request{Method: http.MethodPost, Path: "/agents", Body: spec})
	if err != nil {
		return Agent{}, err
	}
	return decodeAgent(pick(r, "agent")), nil
}

// UpdateAgent replaces agent id with spec.
func (s *Service) UpdateAgent(ctx context.Context, id string, spec AgentSpec) (Agent, error) {
	r, err := s.write(ctx, api.Request{Method: http.MethodPut, Path: agentPath(id), Body: spec})
	if err != nil {
		return Agent{}, err
	}
	return withAgentID(decodeAgent(pick(r, "agent")), id), nil
}

// PatchAgent changes only the given fields of agent id.
func (s *Service) PatchAgent(ctx context.Context, id string, fields map[string]any) (Agent, error) {
	if len(fields) == 0 {
		return Agent{}, invalid("PATCH "+agentPath(id), "no fields to update")
	}
	r, err := s.write(ctx, api.Request{Method: http.MethodPatch, Path: agentPath(id), Body: fields})
	if err != nil {
		return Agent{}, err
	}
	return withAgentID(decodeAgent(pick(r, "agent")), id), nil
}

// SwitchAgentModel points agent id at modelID.
func (s *Service) SwitchAgentModel(ctx context.Context, id, modelID string) (Agent, error) {
	if modelID == "" {
		return Agent{}, invalid("PUT "+agentPath(id)+"/model", "model id is required")
	}
	r, err := s.write(ctx, api.Request{
		Method: http.MethodPut,
		Path:   agentPath(id) + "/model",
		Body:   map[string]string{"model_id": modelID},
	})
	if err != nil {
		return Agent{}, err
	}
	a := withAgentID(decodeAgent(pick(r, "agent")), id)
	if a.ModelID == "" {
		a.ModelID = modelID
	}
	return a, nil
}

func withAgentID(a Agent, id string) Agent {
	if a.ID == "" {
		a.ID = id
	}
	return a
}

// TestModel sends prompt to model id and returns its response and metrics.
func (s *Service) TestModel(ctx context.Context, modelID, prompt string) (ModelTestResult, error) {
	r, err := s.write(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/models/" + url.PathEscape(modelID) + "/test",
		Body:   map[string]string{"prompt": prompt},
	})
	if err != nil {
		return ModelTestResult{}, err
	}
	return decodeModelTest(r), nil
}

// Generate requests a single completion.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (Completion, error) {
	r, err := s.write(ctx, api.Request{Method: http.MethodPost, Path: "/models/generate", Body: req})
	if err != nil {
		return Completion{}, err
	}
	return decodeCompletion(r), nil
}

// Chat continues a conversation.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (Completion, error) {
	if len(req.Messages) == 0 {
		return Completion{}, invalid("POST /models/chat", "at least one message is required")
	}
	r, err := s.write(ctx, api.Request{Method: http.MethodPost, Path: "/models/chat", Body: req})
	if err != nil {
		return Completion{}, err
	}
	return decodeCompletion(r), nil
}

// CreateWorkflow registers a new workflow definition.
func (s *Service) CreateWorkflow(ctx context.Context, spec WorkflowSpec) (Workflow, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Workflow{}, invalid("POST /workflows", "workflow name is required")
	}
	r, err := s.write(ctx, api.Request{Method: http.MethodPost, Path: "/workflows", Body: spec})
	if err != nil {
		return Workflow{}, err
	}
	return decodeWorkflow(pick(r, "workflow")), nil
}

// ExecuteWorkflow starts workflow id with parameters.
func (s *Service) ExecuteWorkflow(ctx context.Context, id string, parameters map[string]any) (Execution, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}
	r, err := s.write(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/workflows/" + url.PathEscape(id) + "/execute",
		Body:   map[string]any{"parameters": parameters},
	})
	if err != nil {
		return Execution{}, err
	}
	return decodeExecution(id, r), nil
}

// ConvertGoalToTasks asks the backend to decompose a goal into a task workflow.
// The call uses the goal timeout rather than the ordinary request timeout.
func (s *Service) ConvertGoalToTasks(ctx context.Context, goal GoalRequest) (GoalConversion, error) {
	const endpoint = "/workflows/goaltotask"
	if strings.TrimSpace(goal.Goal) == "" {
		return GoalConversion{}, invalid("POST "+endpoint, "goal is required")
	}
	r, err := s.write(ctx, api.Request{
		Method:  http.MethodPost,
		Path:    endpoint,
		Body:    goal,
		Timeout: s.goalTimeout,
	})
	if err != nil {
		return GoalConversion{}, err
	}
	conv := decodeGoalConversion(r)
	if !conv.Success {
		msg := conv.Message
		if msg == "" {
			msg = "backend returned success=false"
		}
		return conv, fmt.Errorf("%w: %s", ErrGoalRejected, msg)
	}
	return conv, nil
}

// pick returns r[key] when it is an object, else r.
func pick(r gjson.Result, key string) gjson.Result {
	if v := r.Get(key); v.IsObject() {
		return v
	}
	return r
}
