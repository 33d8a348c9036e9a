// ABOUTME: Serializes task graphs to Graphviz DOT with task status colors, and renders DOT to SVG/PNG.
// ABOUTME: Rendering shells out to the graphviz dot command, which must be on PATH.
package taskgraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/2389-research/switchboard/resource"
)

// Fill colors keyed by normalized task status.
const (
	StatusColorCompleted  = "#4CAF50"
	StatusColorFailed     = "#F44336"
	StatusColorInProgress = "#FFC107"
	StatusColorPending    = "#9E9E9E"
)

// ErrGraphvizMissing is returned when svg or png output is requested and the
// dot command cannot be found.
var ErrGraphvizMissing = errors.New("graphviz dot command not found")

// Formats accepted by Render.
var Formats = []string{"dot", "svg", "png"}

// DOT serializes the graph as a left-to-right digraph. Nodes are filled by
// their task's status and appear in input order, so output is deterministic.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph tasks {\n")
	b.WriteString("  rankdir=\"LR\"\n")
	b.WriteString("  node [shape=\"box\", style=\"rounded,filled\", fontname=\"Helvetica\"]\n")
	for i, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q]\n",
			nodeID(i), fmt.Sprintf("%d. %s", i+1, n.Task.Description), statusColor(n.Task.Status))
	}
	for i, n := range g.Nodes {
		for _, d := range n.Deps {
			fmt.Fprintf(&b, "  %s -> %s\n", nodeID(d), nodeID(i))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func statusColor(status string) string {
	switch resource.NormalizeStatus(status) {
	case resource.StatusCompleted:
		return StatusColorCompleted
	case resource.StatusFailed:
		return StatusColorFailed
	case resource.StatusInProgress:
		return StatusColorInProgress
	default:
		return StatusColorPending
	}
}

// GraphvizAvailable reports whether the dot command is on PATH.
func GraphvizAvailable() bool {
	_, err := exec.LookPath("dot")
	return err == nil
}

// Render returns dotText unchanged for "dot", or pipes it through graphviz
// for "svg" and "png".
func Render(ctx context.Context, dotText, format string) ([]byte, error) {
	if dotText == "" {
		return nil, errors.New("cannot render empty DOT text")
	}
	switch format {
	case "dot":
		return []byte(dotText), nil
	case "svg", "png":
	default:
		return nil, fmt.Errorf("unsupported format %q: supported formats are %s", format, strings.Join(Formats, ", "))
	}

	if !GraphvizAvailable() {
		return nil, fmt.Errorf("%w: install graphviz to render %s output", ErrGraphvizMissing, format)
	}
	cmd := exec.CommandContext(ctx, "dot", "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("graphviz dot command failed: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
