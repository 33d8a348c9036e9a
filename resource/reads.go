// ABOUTME: Cached read operations for agents, models, workflows, activities, health, and executions.
// ABOUTME: Each read normalizes its envelope once and reports freshness alongside the data.
package resource

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389-research/switchboard/api"
	"github.com/tidwall/gjson"
)

var emptyList = []byte("[]")

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func readList[T any](ctx context.Context, s *Service, req api.Request, key string, opts ReadOptions, decode func(gjson.Result) T) (List[T], error) {
	payload, fresh, err := s.read(ctx, req, emptyList, opts)
	if err != nil {
		return List[T]{Items: []T{}}, err
	}
	items, total := splitEnvelope(payload, key)
	return List[T]{Items: decodeAll(items, decode), Total: total, Freshness: fresh}, nil
}

// Agents lists the configured agents.
func (s *Service) Agents(ctx context.Context, opts ReadOptions) (List[Agent], error) {
	return readList(ctx, s, api.Request{Method: http.MethodGet, Path: "/agents"}, "agents", opts, decodeAgent)
}

// Models lists the registered models.
func (s *Service) Models(ctx context.Context, opts ReadOptions) (List[Model], error) {
	return readList(ctx, s, api.Request{Method: http.MethodGet, Path: "/models"}, "models", opts, decodeModel)
}

// Workflows lists workflows, optionally paginated.
func (s *Service) Workflows(ctx context.Context, page Page, opts ReadOptions) (List[Workflow], error) {
	req := api.Request{Method: http.MethodGet, Path: "/workflows", Query: page.query()}
	return readList(ctx, s, req, "workflows", opts, decodeWorkflow)
}

// RecentWorkflows returns the first page of workflows, at most limit long.
func (s *Service) RecentWorkflows(ctx context.Context, limit int, opts ReadOptions) (List[Workflow], error) {
	list, err := s.Workflows(ctx, Page{Page: 1, Limit: limit}, opts)
	if err != nil {
		return list, err
	}
	if limit > 0 && len(list.Items) > limit {
		list.Items = list.Items[:limit]
	}
	return list, nil
}

// Activities lists the activity feed, optionally paginated.
func (s *Service) Activities(ctx context.Context, page Page, opts ReadOptions) (List[Activity], error) {
	req := api.Request{Method: http.MethodGet, Path: "/activities", Query: page.query()}
	return readList(ctx, s, req, "activities", opts, decodeActivity)
}

// Health returns the backend health report. It returns nil when the backend
// could not be reached and nothing was cached.
func (s *Service) Health(ctx context.Context, opts ReadOptions) (*Health, Freshness, error) {
	payload, fresh, err := s.read(ctx, api.Request{Method: http.MethodGet, Path: "/health"}, nil, opts)
	if err != nil || len(payload) == 0 {
		return nil, fresh, err
	}
	h := decodeHealth(unwrapObject(payload, "health"))
	return &h, fresh, nil
}

// Workflow fetches one workflow definition.
func (s *Service) Workflow(ctx context.Context, id string, opts ReadOptions) (Workflow, Freshness, error) {
	req := api.Request{Method: http.MethodGet, Path: "/workflows/" + url.PathEscape(id)}
	payload, fresh, err := s.read(ctx, req, nil, opts)
	if err != nil {
		return Workflow{}, fresh, err
	}
	wf := decodeWorkflow(unwrapObject(payload, "workflow"))
	if wf.ID == "" {
		wf.ID = id
	}
	return wf, fresh, nil
}

// WorkflowStatus fetches the execution snapshot of workflow id. LastUpdated is
// stamped with the fetch time when the backend omits it.
func (s *Service) WorkflowStatus(ctx context.Context, id string, opts ReadOptions) (WorkflowSnapshot, Freshness, error) {
	req := api.Request{Method: http.MethodGet, Path: "/workflows/" + url.PathEscape(id) + "/status"}
	payload, fresh, err := s.read(ctx, req, nil, opts)
	if err != nil {
		return WorkflowSnapshot{}, fresh, err
	}
	snap := decodeSnapshot(id, unwrapObject(payload, "workflow_status"))
	if snap.LastUpdated.IsZero() {
		snap.LastUpdated = fresh.FetchedAt
	}
	return snap, fresh, nil
}

// WorkflowLogs fetches execution log lines of workflow id.
func (s *Service) WorkflowLogs(ctx context.Context, id string, page Page, opts ReadOptions) (List[LogEntry], error) {
	req := api.Request{Method: http.MethodGet, Path: "/workflows/" + url.PathEscape(id) + "/logs", Query: page.query()}
	return readList(ctx, s, req, "logs", opts, decodeLogEntry)
}

// WorkflowTasks fetches the task records of workflow id.
func (s *Service) WorkflowTasks(ctx context.Context, id string, opts ReadOptions) (List[TaskRecord], error) {
	req := api.Request{Method: http.MethodGet, Path: "/workflows/" + url.PathEscape(id) + "/tasks"}
	return readList(ctx, s, req, "tasks", opts, decodeTask)
}
