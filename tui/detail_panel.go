// ABOUTME: Bubble Tea sub-model for displaying the watched workflow's latest snapshot.
// ABOUTME: Renders status, completion, per-status task counts, last update time, and any error.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/2389-research/switchboard/resource"
)

// maxErrorLen is the maximum number of characters shown for a workflow error.
const maxErrorLen = 80

// DetailPanelModel displays the latest snapshot of one workflow.
type DetailPanelModel struct {
	snapshot *resource.WorkflowSnapshot
	width    int
	height   int
}

// NewDetailPanelModel creates a new DetailPanelModel with no snapshot.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{}
}

// SetSnapshot updates the panel with a new snapshot.
func (m *DetailPanelModel) SetSnapshot(s resource.WorkflowSnapshot) {
	m.snapshot = &s
}

// SetSize sets the available dimensions.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// truncate shortens s to n runes, appending "..." if truncated.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// View renders the detail panel as a string.
func (m DetailPanelModel) View() string {
	title := TitleStyle.Render("WORKFLOW")

	var content string
	if m.snapshot == nil {
		content = title + "\n\n" + ValueStyle.Render("Waiting for first poll...")
	} else {
		s := m.snapshot
		lines := []string{
			title,
			row("ID:", s.ID),
			LabelStyle.Render("Status:") + StyleForStatus(s.Status).Render(StatusIcon(s.Status)+" "+s.Status),
			row("Complete:", fmt.Sprintf("%.1f%%", s.CompletionPercentage)),
		}

		statuses := make([]string, 0, len(s.TaskCounts))
		for status := range s.TaskCounts {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			lines = append(lines, LabelStyle.Render("  "+status+":")+
				StyleForStatus(status).Render(fmt.Sprintf("%d", s.TaskCounts[status])))
		}

		if !s.LastUpdated.IsZero() {
			lines = append(lines, row("Updated:", s.LastUpdated.Local().Format(time.TimeOnly)))
		}
		if s.Error != "" {
			lines = append(lines, LabelStyle.Render("Error:")+FailedStyle.Render(truncate(s.Error, maxErrorLen)))
		}
		content = strings.Join(lines, "\n")
	}

	style := BorderStyle
	if m.width > 0 {
		style = style.Width(m.width)
	}
	if m.height > 0 {
		style = style.Height(m.height)
	}

	return style.Render(content)
}

// row renders a label-value pair using the standard label and value styles.
func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
