// ABOUTME: Implements a scrollable workflow log panel using the bubbles viewport component.
// ABOUTME: Displays execution log lines with color-coded formatting based on line type.
package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/switchboard/resource"
)

// LogPanelModel is a scrollable log of workflow execution lines.
type LogPanelModel struct {
	entries  []resource.LogEntry
	max      int
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates a new log panel with a maximum number of entries.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return LogPanelModel{
		entries:  make([]resource.LogEntry, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds lines to the log, evicting the oldest entries past capacity.
func (m *LogPanelModel) Append(lines ...resource.LogEntry) {
	if len(lines) == 0 {
		return
	}
	m.entries = append(m.entries, lines...)
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetFocused sets whether this panel accepts keyboard input.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Border takes two rows and two columns, the title one row.
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// Update scrolls the viewport when the panel is focused.
func (m LogPanelModel) Update(msg tea.Msg) LogPanelModel {
	if !m.focused {
		return m
	}
	m.viewport, _ = m.viewport.Update(msg)
	return m
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "LOGS"
	if m.focused {
		title = "LOGS (focused)"
	}

	content := "No log lines yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}

	rendered := TitleStyle.Render(title) + "\n" + content

	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(rendered)
}

// syncViewport rebuilds the viewport content from entries and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, formatEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single log line as "15:04:05 type message".
func formatEntry(e resource.LogEntry) string {
	var parts []string
	if ts := formatTimestamp(e.Timestamp); ts != "" {
		parts = append(parts, LogTimestampStyle.Render(ts))
	}
	parts = append(parts, logStyle(e.Type).Render(e.Type), e.Message)
	return strings.Join(parts, " ")
}

// formatTimestamp shortens RFC 3339 timestamps to the clock time and passes
// anything else through unchanged.
func formatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.Local().Format("15:04:05")
	}
	return ts
}

// logStyle returns the style for a log line type.
func logStyle(kind string) lipgloss.Style {
	switch strings.ToLower(kind) {
	case "error":
		return LogErrorStyle
	case "success":
		return LogSuccessStyle
	case "warning", "warn":
		return LogWarningStyle
	default:
		return LogInfoStyle
	}
}
