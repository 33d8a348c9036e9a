// ABOUTME: DecisionPanelModel shows an iteration decision request pushed by a workflow feed.
// ABOUTME: The platform takes answers through its own UI; this panel only surfaces the request until dismissed.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/switchboard/feed"
)

// DecisionPanelModel renders the most recent pending decision request.
type DecisionPanelModel struct {
	request *feed.DecisionRequest
}

// NewDecisionPanelModel creates an inactive panel.
func NewDecisionPanelModel() DecisionPanelModel {
	return DecisionPanelModel{}
}

// Show activates the panel with req, replacing any request already shown.
func (m *DecisionPanelModel) Show(req feed.DecisionRequest) {
	m.request = &req
}

// Dismiss hides the panel.
func (m *DecisionPanelModel) Dismiss() {
	m.request = nil
}

// IsActive returns whether a request is being shown.
func (m DecisionPanelModel) IsActive() bool {
	return m.request != nil
}

// View renders the request, or an empty string when inactive.
func (m DecisionPanelModel) View() string {
	if m.request == nil {
		return ""
	}
	r := m.request

	var b strings.Builder
	prompt := r.Prompt
	if prompt == "" {
		prompt = "Decision required"
	}
	if r.Iteration > 0 {
		fmt.Fprintf(&b, "[?] Iteration %d: %s\n", r.Iteration, prompt)
	} else {
		fmt.Fprintf(&b, "[?] %s\n", prompt)
	}
	for _, opt := range r.Options {
		fmt.Fprintf(&b, "  - %s\n", opt)
	}
	b.WriteString("\n")
	b.WriteString(PendingStyle.Render("esc to dismiss"))

	return DecisionStyle.Render(b.String())
}
