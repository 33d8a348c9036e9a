// ABOUTME: Dependency graph over workflow tasks whose dependencies name other tasks by description.
// ABOUTME: Resolution is a linear first-match lookup; duplicates and dangling references are reported, not guessed.
package taskgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/switchboard/resource"
)

// ErrCycle is returned by Order when the dependencies form a cycle.
var ErrCycle = errors.New("task dependencies form a cycle")

// Node is one task with its resolved dependency edges.
type Node struct {
	// Index is the task's 0-based position in the input.
	Index int
	Task  resource.TaskRecord
	// Deps are the indexes of the tasks this task depends on.
	Deps []int
}

// IssueKind classifies a graph problem.
type IssueKind string

const (
	// IssueDuplicate marks a description shared by several tasks. Only the
	// first of them can be the target of a dependency.
	IssueDuplicate IssueKind = "duplicate_description"
	// IssueUnresolved marks a dependency naming no task.
	IssueUnresolved IssueKind = "unresolved_dependency"
)

// Issue is a problem found while building a graph.
type Issue struct {
	Kind IssueKind `json:"kind"`
	// Task is the 0-based index of the task the issue is about.
	Task        int    `json:"task"`
	Description string `json:"description"`
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueDuplicate:
		return fmt.Sprintf("task %d repeats description %q", i.Task+1, i.Description)
	case IssueUnresolved:
		return fmt.Sprintf("task %d depends on unknown task %q", i.Task+1, i.Description)
	default:
		return fmt.Sprintf("task %d: %s", i.Task+1, i.Description)
	}
}

// Graph is a task dependency graph in input order.
type Graph struct {
	Nodes  []Node
	Issues []Issue
}

// Build resolves each dependency to the first task with that exact
// description.
func Build(tasks []resource.TaskRecord) *Graph {
	g := &Graph{Nodes: make([]Node, len(tasks))}
	for i, t := range tasks {
		g.Nodes[i] = Node{Index: i, Task: t}
		if first := findByDescription(tasks, t.Description); first != i {
			g.Issues = append(g.Issues, Issue{Kind: IssueDuplicate, Task: i, Description: t.Description})
		}
	}
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			idx := findByDescription(tasks, dep)
			if idx < 0 {
				g.Issues = append(g.Issues, Issue{Kind: IssueUnresolved, Task: i, Description: dep})
				continue
			}
			g.Nodes[i].Deps = append(g.Nodes[i].Deps, idx)
		}
	}
	return g
}

func findByDescription(tasks []resource.TaskRecord, description string) int {
	for i, t := range tasks {
		if t.Description == description {
			return i
		}
	}
	return -1
}

// IsRoot reports whether node i declares no dependencies at all. A task whose
// dependencies are all unresolved is not a root.
func (g *Graph) IsRoot(i int) bool {
	return len(g.Nodes[i].Task.Dependencies) == 0
}

// Roots returns the indexes of the root tasks.
func (g *Graph) Roots() []int {
	var roots []int
	for i := range g.Nodes {
		if g.IsRoot(i) {
			roots = append(roots, i)
		}
	}
	return roots
}

// Order returns the task indexes so every task follows its dependencies,
// preferring input order among ready tasks.
func (g *Graph) Order() ([]int, error) {
	remaining := make([]int, len(g.Nodes))
	dependents := make([][]int, len(g.Nodes))
	for i, n := range g.Nodes {
		remaining[i] = len(n.Deps)
		for _, d := range n.Deps {
			dependents[d] = append(dependents[d], i)
		}
	}

	order := make([]int, 0, len(g.Nodes))
	done := make([]bool, len(g.Nodes))
	for len(order) < len(g.Nodes) {
		next := -1
		for i := range g.Nodes {
			if !done[i] && remaining[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := range g.Nodes {
				if !done[i] {
					stuck = append(stuck, g.Nodes[i].Task.Description)
				}
			}
			return order, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			remaining[dep]--
		}
	}
	return order, nil
}
