// ABOUTME: Help display for the switchboard CLI with commands, flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for configuration detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes a formatted help message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "switchboard %s: terminal and local web client for the agent orchestration platform\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  switchboard [flags] dashboard             Print agent, model, workflow, and health summary")
	fmt.Fprintln(w, "  switchboard [flags] watch <workflow-id>   Follow a workflow until it finishes")
	fmt.Fprintln(w, "  switchboard [flags] goal <text>           Convert a goal into a task workflow")
	fmt.Fprintln(w, "  switchboard [flags] health                Check platform health")
	fmt.Fprintln(w, "  switchboard [flags] serve                 Start the local web server")
	fmt.Fprintln(w, "  switchboard [flags] tui                   Interactive dashboard")
	fmt.Fprintln(w, "  switchboard version                       Print version")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <file>        YAML config file (overrides SWITCHBOARD_CONFIG)")
	fmt.Fprintln(w, "  -json                 Print machine-readable JSON")
	fmt.Fprintln(w, "  -verbose              Log client, cache, and poller activity to stderr")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Command Flags:")
	fmt.Fprintln(w, "  watch -plain          Print updates as lines instead of the terminal UI")
	fmt.Fprintln(w, "  watch -no-feed        Poll only; skip the WebSocket and NATS feeds")
	fmt.Fprintln(w, "  goal -context <text>  Extra context sent with the goal")
	fmt.Fprintln(w, "  goal -format <fmt>    md (default), mermaid, dot, svg, or png")
	fmt.Fprintln(w, "  dashboard -refresh    Bypass fresh cache entries")
	fmt.Fprintln(w, "  serve -bind <addr>    Loopback listen address (default: SWITCHBOARD_BIND)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  switchboard dashboard")
	fmt.Fprintln(w, "  switchboard -json health")
	fmt.Fprintln(w, "  switchboard watch -plain wf-123")
	fmt.Fprintln(w, "  switchboard goal -context \"3 days, budget $500\" Plan a trip to Lisbon")
	fmt.Fprintln(w, "  switchboard goal -format svg Write a novel > plan.svg")
	fmt.Fprintln(w, "  switchboard serve -bind 127.0.0.1:8089")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, key := range []string{
		"SWITCHBOARD_API_BASE_URL",
		"SWITCHBOARD_API_KEY",
		"SWITCHBOARD_WS_BASE_URL",
		"SWITCHBOARD_NATS_URL",
		"SWITCHBOARD_CONFIG",
	} {
		fmt.Fprintf(w, "  %-26s %s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Values in ./.env are loaded when not already set.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
