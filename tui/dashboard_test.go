// ABOUTME: Tests for DashboardModel covering loading, refresh keys, timed reloads, and rendering.
// ABOUTME: Uses a stub aggregator source so no platform backend is needed.
package tui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/switchboard/cache"
	"github.com/2389-research/switchboard/dashboard"
	"github.com/2389-research/switchboard/resource"
)

type stubDashboardSource struct {
	forced atomic.Int32
}

func (s *stubDashboardSource) count(opts resource.ReadOptions) {
	if opts.ForceRefresh {
		s.forced.Add(1)
	}
}

func (s *stubDashboardSource) Agents(ctx context.Context, opts resource.ReadOptions) (resource.List[resource.Agent], error) {
	s.count(opts)
	return resource.List[resource.Agent]{Items: []resource.Agent{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}}, nil
}

func (s *stubDashboardSource) Models(ctx context.Context, opts resource.ReadOptions) (resource.List[resource.Model], error) {
	return resource.List[resource.Model]{Items: []resource.Model{{ID: "m1"}}}, nil
}

func (s *stubDashboardSource) Workflows(ctx context.Context, page resource.Page, opts resource.ReadOptions) (resource.List[resource.Workflow], error) {
	total := 12
	return resource.List[resource.Workflow]{Total: &total}, nil
}

func (s *stubDashboardSource) Activities(ctx context.Context, page resource.Page, opts resource.ReadOptions) (resource.List[resource.Activity], error) {
	return resource.List[resource.Activity]{}, nil
}

func (s *stubDashboardSource) RecentWorkflows(ctx context.Context, limit int, opts resource.ReadOptions) (resource.List[resource.Workflow], error) {
	return resource.List[resource.Workflow]{Items: []resource.Workflow{
		{ID: "wf-1", Name: "Plan trip", Status: "COMPLETED"},
		{ID: "wf-2", Status: "IN_PROGRESS"},
	}}, nil
}

func (s *stubDashboardSource) Health(ctx context.Context, opts resource.ReadOptions) (*resource.Health, resource.Freshness, error) {
	return nil, resource.Freshness{Source: cache.SourceFallback}, errors.New("health endpoint down")
}

func loadedDashboard(t *testing.T, src *stubDashboardSource) DashboardModel {
	t.Helper()
	agg := dashboard.NewAggregator(src, 5)
	m := NewDashboardModel(context.Background(), agg, 0)
	msg := FetchDashboardCmd(context.Background(), agg, false)()
	updated, _ := m.Update(msg)
	return updated.(DashboardModel)
}

func TestDashboardModelLoading(t *testing.T) {
	m := NewDashboardModel(context.Background(), dashboard.NewAggregator(&stubDashboardSource{}, 5), 0)
	if !m.loading {
		t.Error("new model should be loading")
	}
	if m.Init() == nil {
		t.Error("Init should fetch the dashboard")
	}
	if got := m.View(); got != "Loading dashboard..." {
		t.Errorf("View = %q", got)
	}
}

func TestDashboardModelRendersSnapshot(t *testing.T) {
	m := loadedDashboard(t, &stubDashboardSource{})
	if m.loading {
		t.Error("loading should clear after a snapshot arrives")
	}
	if m.snapshot.Counts.Agents != 3 || m.snapshot.Counts.Workflows != 12 {
		t.Errorf("counts = %+v", m.snapshot.Counts)
	}

	view := m.View()
	for _, want := range []string{"Agents", "Plan trip", "wf-2", "SYSTEM HEALTH", "unavailable", "Degraded: health"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboardModelRefreshKey(t *testing.T) {
	src := &stubDashboardSource{}
	m := loadedDashboard(t, src)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("r should trigger a fetch")
	}
	dm := updated.(DashboardModel)
	if !dm.loading {
		t.Error("r should mark the model loading")
	}

	_, again := dm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if again != nil {
		t.Error("r while loading should not start a second fetch")
	}

	if _, ok := cmd().(DashboardMsg); !ok {
		t.Fatal("refresh command should produce a DashboardMsg")
	}
	if src.forced.Load() != 1 {
		t.Errorf("forced reads = %d, want 1", src.forced.Load())
	}
}

func TestDashboardModelTickReloads(t *testing.T) {
	m := loadedDashboard(t, &stubDashboardSource{})
	m.interval = time.Minute

	updated, cmd := m.Update(TickMsg{Time: time.Now()})
	if cmd == nil {
		t.Fatal("tick should schedule work")
	}
	if !updated.(DashboardModel).loading {
		t.Error("tick should start a reload")
	}
}

func TestDashboardModelQuit(t *testing.T) {
	m := loadedDashboard(t, &stubDashboardSource{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should produce tea.QuitMsg")
	}
}
