// ABOUTME: DashboardModel is the Bubble Tea overview of agents, models, workflows, activities, and health.
// ABOUTME: Loads through the aggregator on start, on a timer, and on demand, and flags degraded sections.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/switchboard/dashboard"
)

// DashboardModel renders aggregated dashboard snapshots.
type DashboardModel struct {
	ctx      context.Context
	agg      *dashboard.Aggregator
	interval time.Duration

	snapshot *dashboard.Snapshot
	loading  bool
	width    int
	height   int
}

// NewDashboardModel creates a DashboardModel. A positive interval reloads the
// dashboard on that period; cached data younger than the cache TTL is reused.
func NewDashboardModel(ctx context.Context, agg *dashboard.Aggregator, interval time.Duration) DashboardModel {
	return DashboardModel{
		ctx:      ctx,
		agg:      agg,
		interval: interval,
		loading:  true,
	}
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{FetchDashboardCmd(m.ctx, m.agg, false)}
	if m.interval > 0 {
		cmds = append(cmds, TickCmd(m.interval))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DashboardMsg:
		snap := msg.Snapshot
		m.snapshot = &snap
		m.loading = false
		return m, nil

	case TickMsg:
		var cmds []tea.Cmd
		if !m.loading {
			m.loading = true
			cmds = append(cmds, FetchDashboardCmd(m.ctx, m.agg, false))
		}
		if m.interval > 0 {
			cmds = append(cmds, TickCmd(m.interval))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, FetchDashboardCmd(m.ctx, m.agg, true)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.snapshot == nil {
		return "Loading dashboard..."
	}
	s := m.snapshot

	sections := []string{
		TitleStyle.Render("SWITCHBOARD"),
		m.countsView(s.Counts),
		m.recentView(s),
		m.healthView(s),
	}
	if len(s.Degraded) > 0 {
		sections = append(sections, StaleStyle.Render("Degraded: "+strings.Join(s.Degraded, ", ")))
	}

	footer := fmt.Sprintf("Fetched %s in %s | r refresh | q quit",
		s.FetchedAt.Local().Format(time.TimeOnly), s.Duration.Round(time.Millisecond))
	if m.loading {
		footer = "Refreshing... | " + footer
	}
	sections = append(sections, StatusBarStyle.Render(footer))

	return strings.Join(sections, "\n\n")
}

func (m DashboardModel) countsView(c dashboard.Counts) string {
	box := func(label string, n int) string {
		return BorderStyle.Padding(0, 2).Render(LabelStyle.Render(label) + "\n" + ValueStyle.Bold(true).Render(fmt.Sprintf("%d", n)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		box("Agents", c.Agents),
		box("Models", c.Models),
		box("Workflows", c.Workflows),
		box("Activities", c.Activities),
	)
}

func (m DashboardModel) recentView(s *dashboard.Snapshot) string {
	lines := []string{TitleStyle.Render("RECENT WORKFLOWS")}
	if len(s.RecentWorkflows) == 0 {
		lines = append(lines, PendingStyle.Render("No workflows"))
	}
	for _, wf := range s.RecentWorkflows {
		name := wf.Name
		if name == "" {
			name = wf.ID
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			StyleForStatus(wf.Status).Render(StatusIcon(wf.Status)),
			ValueStyle.Render(name),
			StyleForStatus(wf.Status).Render(wf.Status)))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) healthView(s *dashboard.Snapshot) string {
	lines := []string{TitleStyle.Render("SYSTEM HEALTH")}
	h := s.SystemHealth
	if h == nil {
		return strings.Join(append(lines, UnknownStyle.Render("unavailable")), "\n")
	}

	overall := StyleForStatus(h.Status).Render(h.Status)
	if h.Version != "" {
		overall += PendingStyle.Render(" (" + h.Version + ")")
	}
	lines = append(lines, LabelStyle.Render("Overall:")+overall)

	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := h.Components[name]
		line := LabelStyle.Render(name+":") + StyleForStatus(c.Status).Render(c.Status)
		if c.Message != "" {
			line += PendingStyle.Render(" " + c.Message)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
