// ABOUTME: Defines lipgloss styles for the dashboard and watch views, status colors, and log formatting.
// ABOUTME: Provides StyleForStatus and StatusIcon to map platform status strings to display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/switchboard/resource"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Status colors
	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	UnknownStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Log line colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogInfoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogWarningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// Degraded-data banner
	StaleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	DecisionStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)
)

// StyleForStatus returns the style for a workflow, task, or agent status.
// Health strings such as "healthy" and "degraded" are accepted too.
func StyleForStatus(status string) lipgloss.Style {
	switch resource.NormalizeStatus(status) {
	case resource.StatusPending:
		return PendingStyle
	case resource.StatusInProgress:
		return RunningStyle
	case resource.StatusCompleted, "HEALTHY", "OK", "ACTIVE":
		return CompletedStyle
	case resource.StatusFailed, "UNHEALTHY":
		return FailedStyle
	case "DEGRADED":
		return RunningStyle
	default:
		return UnknownStyle
	}
}

// StatusIcon returns a bracket-style marker for a status.
func StatusIcon(status string) string {
	switch resource.NormalizeStatus(status) {
	case resource.StatusPending:
		return "[ ]"
	case resource.StatusInProgress:
		return "[~]"
	case resource.StatusCompleted:
		return "[*]"
	case resource.StatusFailed:
		return "[!]"
	default:
		return "[?]"
	}
}

// SpinnerFrames animates the status bar while a workflow is running.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
