// ABOUTME: Renders task graphs as Mermaid flowcharts and goal conversions as Markdown and HTML reports.
// ABOUTME: HTML output goes through goldmark with the table extension.
package taskgraph

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/2389-research/switchboard/resource"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	rootStyle      = "fill:#d1fae5,stroke:#10b981"
	dependentStyle = "fill:#fef3c7,stroke:#f59e0b"
)

func nodeID(i int) string {
	return fmt.Sprintf("Task%d", i+1)
}

// mermaidLabel escapes characters that end a quoted Mermaid label.
func mermaidLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "\n", " ").Replace(s)
}

// Mermaid renders a top-down flowchart with one node per task, numbered from
// 1. Tasks without dependencies are styled green, the rest amber. Unresolved
// dependencies produce no edge.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD;\n")
	for i, n := range g.Nodes {
		fmt.Fprintf(&b, "%s[\"%d. %s\"];\n", nodeID(i), i+1, mermaidLabel(n.Task.Description))
		style := dependentStyle
		if g.IsRoot(i) {
			style = rootStyle
		}
		fmt.Fprintf(&b, "style %s %s;\n", nodeID(i), style)
	}
	for i, n := range g.Nodes {
		for _, d := range n.Deps {
			fmt.Fprintf(&b, "%s --> %s;\n", nodeID(d), nodeID(i))
		}
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

// Report renders a goal conversion as Markdown: a task table, any graph
// issues, and the Mermaid definition in a fenced block.
func Report(goal resource.GoalRequest, conv resource.GoalConversion) string {
	g := Build(conv.Tasks)
	var b strings.Builder

	fmt.Fprintf(&b, "# Workflow %s\n\n", cell(conv.WorkflowID))
	fmt.Fprintf(&b, "**Goal:** %s\n\n", goal.Goal)
	if goal.Context != "" {
		fmt.Fprintf(&b, "**Context:** %s\n\n", goal.Context)
	}

	if len(conv.Tasks) == 0 {
		b.WriteString("No tasks were generated.\n")
		return b.String()
	}

	b.WriteString("| # | Task | Type | Priority | Depends on |\n")
	b.WriteString("|---|------|------|----------|------------|\n")
	for i, n := range g.Nodes {
		deps := make([]string, 0, len(n.Deps))
		for _, d := range n.Deps {
			deps = append(deps, fmt.Sprintf("%d", d+1))
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, cell(n.Task.Description), cell(n.Task.Type), cell(n.Task.Priority), cell(strings.Join(deps, ", ")))
	}

	if len(g.Issues) > 0 {
		b.WriteString("\n## Issues\n\n")
		for _, is := range g.Issues {
			fmt.Fprintf(&b, "- %s\n", is)
		}
	}

	b.WriteString("\n## Graph\n\n```mermaid\n")
	b.WriteString(g.Mermaid())
	b.WriteString("```\n")
	return b.String()
}

// ToHTML converts Markdown to HTML. goldmark's default renderer omits raw HTML
// found in the input.
func ToHTML(markdown string) template.HTML {
	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(markdown))
	}
	return template.HTML(buf.String())
}
