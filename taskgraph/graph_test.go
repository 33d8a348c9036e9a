// ABOUTME: Tests for task graph construction, ordering, and rendering.
// ABOUTME: Covers description lookup, duplicate and dangling references, cycles, Mermaid, and HTML output.
package taskgraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/2389-research/switchboard/resource"
)

func tripTasks() []resource.TaskRecord {
	return []resource.TaskRecord{
		{Description: "Research destinations", Type: "research", Priority: "high", Dependencies: []string{}},
		{Description: "Book transport", Type: "booking", Priority: "medium", Dependencies: []string{"Research destinations"}},
	}
}

func TestMermaidForTripPlan(t *testing.T) {
	got := Build(tripTasks()).Mermaid()
	want := "graph TD;\n" +
		"Task1[\"1. Research destinations\"];\n" +
		"style Task1 fill:#d1fae5,stroke:#10b981;\n" +
		"Task2[\"2. Book transport\"];\n" +
		"style Task2 fill:#fef3c7,stroke:#f59e0b;\n" +
		"Task1 --> Task2;\n"
	if got != want {
		t.Errorf("Mermaid =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildFirstMatchWinsAndReportsDuplicates(t *testing.T) {
	tasks := []resource.TaskRecord{
		{Description: "Fetch data"},
		{Description: "Fetch data"},
		{Description: "Summarize", Dependencies: []string{"Fetch data"}},
	}
	g := Build(tasks)

	if deps := g.Nodes[2].Deps; len(deps) != 1 || deps[0] != 0 {
		t.Errorf("deps = %v, want [0]", deps)
	}
	if len(g.Issues) != 1 || g.Issues[0].Kind != IssueDuplicate || g.Issues[0].Task != 1 {
		t.Errorf("issues = %+v, want one duplicate on task 1", g.Issues)
	}
}

func TestBuildReportsUnresolvedDependencies(t *testing.T) {
	tasks := []resource.TaskRecord{
		{Description: "Deploy", Dependencies: []string{"Build image", "Run tests"}},
		{Description: "Run tests"},
	}
	g := Build(tasks)

	if len(g.Nodes[0].Deps) != 1 || g.Nodes[0].Deps[0] != 1 {
		t.Errorf("deps = %v, want [1]", g.Nodes[0].Deps)
	}
	if len(g.Issues) != 1 || g.Issues[0].Kind != IssueUnresolved || g.Issues[0].Description != "Build image" {
		t.Errorf("issues = %+v", g.Issues)
	}
	if !strings.Contains(g.Issues[0].String(), `task 1 depends on unknown task "Build image"`) {
		t.Errorf("issue string = %q", g.Issues[0].String())
	}
	if strings.Contains(g.Mermaid(), "Build image") {
		t.Error("unresolved dependency should not produce a node or edge")
	}
	if g.IsRoot(0) {
		t.Error("a task with declared dependencies is not a root")
	}
}

func TestOrderFollowsDependencies(t *testing.T) {
	tasks := []resource.TaskRecord{
		{Description: "C", Dependencies: []string{"B"}},
		{Description: "A"},
		{Description: "B", Dependencies: []string{"A"}},
	}
	order, err := Build(tasks).Order()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 0}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if roots := Build(tasks).Roots(); len(roots) != 1 || roots[0] != 1 {
		t.Errorf("roots = %v, want [1]", roots)
	}
}

func TestOrderDetectsCycle(t *testing.T) {
	tasks := []resource.TaskRecord{
		{Description: "A", Dependencies: []string{"B"}},
		{Description: "B", Dependencies: []string{"A"}},
		{Description: "C"},
	}
	order, err := Build(tasks).Order()
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	if len(order) != 1 || order[0] != 2 {
		t.Errorf("partial order = %v, want [2]", order)
	}
}

func TestMermaidEscapesQuotes(t *testing.T) {
	g := Build([]resource.TaskRecord{{Description: `Say "hi"`}})
	if !strings.Contains(g.Mermaid(), `Task1["1. Say #quot;hi#quot;"];`) {
		t.Errorf("Mermaid = %s", g.Mermaid())
	}
}

func TestReportAndHTML(t *testing.T) {
	conv := resource.GoalConversion{Success: true, WorkflowID: "wf-123", Tasks: tripTasks()}
	md := Report(resource.GoalRequest{Goal: "Plan a trip", Context: "3 days, budget $500"}, conv)

	for _, want := range []string{
		"# Workflow wf-123",
		"**Goal:** Plan a trip",
		"| 2 | Book transport | booking | medium | 1 |",
		"```mermaid\ngraph TD;",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Issues") {
		t.Error("clean graph should have no issues section")
	}

	html := string(ToHTML(md))
	if !strings.Contains(html, "<table>") || !strings.Contains(html, `class="language-mermaid"`) {
		t.Errorf("HTML = %s", html)
	}
}

func TestReportWithoutTasks(t *testing.T) {
	md := Report(resource.GoalRequest{Goal: "x"}, resource.GoalConversion{WorkflowID: "wf-0"})
	if !strings.Contains(md, "No tasks were generated.") {
		t.Errorf("report = %s", md)
	}
}

func TestToHTMLOmitsRawHTML(t *testing.T) {
	html := string(ToHTML("hello <script>alert(1)</script>"))
	if strings.Contains(html, "<script>") {
		t.Errorf("raw HTML leaked: %s", html)
	}
}
