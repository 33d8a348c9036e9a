// ABOUTME: Dashboard aggregator fanning out to every summary read concurrently.
// ABOUTME: Each branch is fault isolated and falls back to its documented default.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/2389-research/switchboard/resource"
)

// DefaultRecentLimit is how many recent workflows a snapshot carries.
const DefaultRecentLimit = 5

// Source is the subset of the data-access service the aggregator reads.
type Source interface {
	Agents(ctx context.Context, opts resource.ReadOptions) (resource.List[resource.Agent], error)
	Models(ctx context.Context, opts resource.ReadOptions) (resource.List[resource.Model], error)
	Workflows(ctx context.Context, page resource.Page, opts resource.ReadOptions) (resource.List[resource.Workflow], error)
	Activities(ctx context.Context, page resource.Page, opts resource.ReadOptions) (resource.List[resource.Activity], error)
	RecentWorkflows(ctx context.Context, limit int, opts resource.ReadOptions) (resource.List[resource.Workflow], error)
	Health(ctx context.Context, opts resource.ReadOptions) (*resource.Health, resource.Freshness, error)
}

// Counts are the headline numbers of the dashboard.
type Counts struct {
	Agents     int `json:"agents"`
	Models     int `json:"models"`
	Workflows  int `json:"workflows"`
	Activities int `json:"activities"`
}

// Snapshot is one assembled dashboard.
type Snapshot struct {
	Counts          Counts              `json:"counts"`
	RecentWorkflows []resource.Workflow `json:"recent_workflows"`
	SystemHealth    *resource.Health    `json:"system_health"`
	// Degraded names the branches that failed or were served from stale or
	// fallback data.
	Degraded  []string      `json:"degraded,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
	Duration  time.Duration `json:"duration"`
}

// Aggregator assembles dashboard snapshots.
type Aggregator struct {
	source      Source
	recentLimit int
}

// NewAggregator creates an Aggregator. A non-positive recentLimit uses DefaultRecentLimit.
func NewAggregator(source Source, recentLimit int) *Aggregator {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Aggregator{source: source, recentLimit: recentLimit}
}

// branchResult is what one branch reports back to the fan-in.
type branchResult struct {
	degraded bool
	err      error
}

// Snapshot runs every branch concurrently and always returns a result. There
// is no retry at this layer.
func (a *Aggregator) Snapshot(ctx context.Context, forceRefresh bool) Snapshot {
	start := time.Now()
	opts := resource.ReadOptions{ForceRefresh: forceRefresh}
	snap := Snapshot{RecentWorkflows: []resource.Workflow{}}

	branches := map[string]func() branchResult{
		"agents": func() branchResult {
			l, err := a.source.Agents(ctx, opts)
			if err != nil {
				return branchResult{err: err}
			}
			snap.Counts.Agents = l.Count()
			return branchResult{degraded: l.Freshness.Degraded()}
		},
		"models": func() branchResult {
			l, err := a.source.Models(ctx, opts)
			if err != nil {
				return branchResult{err: err}
			}
			snap.Counts.Models = l.Count()
			return branchResult{degraded: l.Freshness.Degraded()}
		},
		"workflows": func() branchResult {
			l, err := a.source.Workflows(ctx, resource.Page{}, opts)
			if err != nil {
				return branchResult{err: err}
			}
			snap.Counts.Workflows = l.Count()
			return branchResult{degraded: l.Freshness.Degraded()}
		},
		"activities": func() branchResult {
			l, err := a.source.Activities(ctx, resource.Page{}, opts)
			if err != nil {
				return branchResult{err: err}
			}
			snap.Counts.Activities = l.Count()
			return branchResult{degraded: l.Freshness.Degraded()}
		},
		"recent_workflows": func() branchResult {
			l, err := a.source.RecentWorkflows(ctx, a.recentLimit, opts)
			if err != nil {
				return branchResult{err: err}
			}
			if l.Items != nil {
				snap.RecentWorkflows = l.Items
			}
			return branchResult{degraded: l.Freshness.Degraded()}
		},
		"health": func() branchResult {
			h, fresh, err := a.source.Health(ctx, opts)
			if err != nil {
				return branchResult{err: err}
			}
			snap.SystemHealth = h
			return branchResult{degraded: fresh.Degraded() || h == nil}
		},
	}

	// Each branch writes a distinct field of snap, so only the degraded list
	// needs the mutex.
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, fn := range branches {
		wg.Add(1)
		go func(name string, fn func() branchResult) {
			defer wg.Done()
			res := runBranch(name, fn)
			if res.err != nil {
				log.Printf("component=dashboard action=branch_failed branch=%s err=%v", name, res.err)
			}
			if res.err != nil || res.degraded {
				mu.Lock()
				snap.Degraded = append(snap.Degraded, name)
				mu.Unlock()
			}
		}(name, fn)
	}
	wg.Wait()

	sort.Strings(snap.Degraded)
	snap.FetchedAt = time.Now()
	snap.Duration = snap.FetchedAt.Sub(start)
	log.Printf("component=dashboard action=snapshot duration=%s degraded=%d",
		snap.Duration.Round(time.Millisecond), len(snap.Degraded))
	return snap
}

// runBranch converts a panicking branch into a failed one so it cannot take
// the whole snapshot down.
func runBranch(name string, fn func() branchResult) (res branchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = branchResult{err: fmt.Errorf("branch %s panicked: %v", name, r)}
		}
	}()
	return fn()
}
