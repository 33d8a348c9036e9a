// ABOUTME: Command implementations for the switchboard CLI and the shared client stack they run on.
// ABOUTME: app wires config into the API client, cache, resource service, aggregator, and poller registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/switchboard/api"
	"github.com/2389-research/switchboard/cache"
	"github.com/2389-research/switchboard/config"
	"github.com/2389-research/switchboard/dashboard"
	"github.com/2389-research/switchboard/feed"
	"github.com/2389-research/switchboard/poller"
	"github.com/2389-research/switchboard/resource"
	"github.com/2389-research/switchboard/taskgraph"
	"github.com/2389-research/switchboard/tui"
	"github.com/2389-research/switchboard/web"
)

// app is the client stack shared by every command.
type app struct {
	cfg      *config.Config
	svc      *resource.Service
	agg      *dashboard.Aggregator
	registry *poller.Registry
}

func newApp(cfg *config.Config) *app {
	client := api.NewClient(cfg.APIBaseURL, cfg.APIKey,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRetryPolicy(api.DefaultRetryPolicy()),
	)
	svc := resource.NewService(client, cache.New(cfg.CacheTTL), resource.WithGoalTimeout(cfg.GoalTimeout))
	return &app{
		cfg:      cfg,
		svc:      svc,
		agg:      dashboard.NewAggregator(svc, cfg.RecentLimit),
		registry: poller.NewRegistry(svc, cfg.PollInterval),
	}
}

func (a *app) close() {
	a.registry.StopAll()
}

// configureLogging sends the structured component logs to stderr when
// verbose, and discards them otherwise. The returned func restores the
// previous output.
func configureLogging(verbose bool, stderr io.Writer) func() {
	prev := log.Writer()
	if verbose {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}
	return func() { log.SetOutput(prev) }
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newCommandFlags returns a FlagSet for a subcommand that reports errors to stderr.
func newCommandFlags(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("switchboard "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// runDashboard prints one aggregated dashboard snapshot.
func (a *app) runDashboard(ctx context.Context, cfg cliConfig, stdout, stderr io.Writer) int {
	fs := newCommandFlags("dashboard", stderr)
	refresh := fs.Bool("refresh", false, "Bypass fresh cache entries")
	if err := fs.Parse(cfg.args); err != nil {
		return 2
	}

	snap := a.agg.Snapshot(ctx, *refresh)
	if cfg.jsonOutput {
		if err := writeJSON(stdout, snap); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "Agents:     %d\n", snap.Counts.Agents)
	fmt.Fprintf(stdout, "Models:     %d\n", snap.Counts.Models)
	fmt.Fprintf(stdout, "Workflows:  %d\n", snap.Counts.Workflows)
	fmt.Fprintf(stdout, "Activities: %d\n", snap.Counts.Activities)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Recent workflows:")
	if len(snap.RecentWorkflows) == 0 {
		fmt.Fprintln(stdout, "  (none)")
	}
	for _, wf := range snap.RecentWorkflows {
		fmt.Fprintf(stdout, "  %-28s %-12s %s\n", wf.ID, resource.NormalizeStatus(wf.Status), wf.Name)
	}
	fmt.Fprintln(stdout)

	if snap.SystemHealth == nil {
		fmt.Fprintln(stdout, "Health: unavailable")
	} else {
		fmt.Fprintf(stdout, "Health: %s\n", snap.SystemHealth.Status)
	}
	if len(snap.Degraded) > 0 {
		fmt.Fprintf(stdout, "Degraded: %s\n", strings.Join(snap.Degraded, ", "))
	}
	return 0
}

// runHealth checks platform health. It exits 1 when the platform is
// unreachable or reports itself unhealthy.
func (a *app) runHealth(ctx context.Context, cfg cliConfig, stdout, stderr io.Writer) int {
	h, fresh, err := a.svc.Health(ctx, resource.ReadOptions{ForceRefresh: true, Strict: true})
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", api.Message(err))
		return 1
	}
	if h == nil {
		fmt.Fprintln(stderr, "error: health unavailable")
		return 1
	}

	if cfg.jsonOutput {
		if err := writeJSON(stdout, h); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	} else {
		fmt.Fprintf(stdout, "status: %s\n", h.Status)
		if h.Version != "" {
			fmt.Fprintf(stdout, "version: %s\n", h.Version)
		}
		names := make([]string, 0, len(h.Components))
		for name := range h.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := h.Components[name]
			if c.Message != "" {
				fmt.Fprintf(stdout, "  %-16s %s (%s)\n", name, c.Status, c.Message)
			} else {
				fmt.Fprintf(stdout, "  %-16s %s\n", name, c.Status)
			}
		}
		if fresh.Stale() {
			fmt.Fprintf(stdout, "(stale, fetched %s)\n", fresh.FetchedAt.Format("15:04:05"))
		}
	}

	if !h.Healthy() {
		return 1
	}
	return 0
}

// runGoal converts a goal into tasks and prints the Markdown report, the
// conversion with its dependency issues as JSON, or the task graph in the
// requested format.
func (a *app) runGoal(ctx context.Context, cfg cliConfig, stdout, stderr io.Writer) int {
	fs := newCommandFlags("goal", stderr)
	goalContext := fs.String("context", "", "Extra context sent with the goal")
	format := fs.String("format", "md", "Output format: md, mermaid, dot, svg, or png")
	if err := fs.Parse(cfg.args); err != nil {
		return 2
	}
	goal := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if goal == "" {
		fmt.Fprintln(stderr, "error: goal requires text")
		return 2
	}
	switch *format {
	case "md", "mermaid", "dot", "svg", "png":
	default:
		fmt.Fprintf(stderr, "error: unknown format %q\n", *format)
		return 2
	}

	req := resource.GoalRequest{Goal: goal, Context: *goalContext}
	conv, err := a.svc.ConvertGoalToTasks(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", api.Message(err))
		return 1
	}

	g := taskgraph.Build(conv.Tasks)
	for _, issue := range g.Issues {
		fmt.Fprintf(stderr, "warning: %s\n", issue)
	}

	if cfg.jsonOutput {
		out := struct {
			Conversion resource.GoalConversion `json:"conversion"`
			Issues     []taskgraph.Issue       `json:"issues"`
			Mermaid    string                  `json:"mermaid"`
		}{conv, g.Issues, g.Mermaid()}
		if out.Issues == nil {
			out.Issues = []taskgraph.Issue{}
		}
		if err := writeJSON(stdout, out); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	switch *format {
	case "md":
		fmt.Fprint(stdout, taskgraph.Report(req, conv))
	case "mermaid":
		fmt.Fprint(stdout, g.Mermaid())
	default:
		data, err := taskgraph.Render(ctx, g.DOT(), *format)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if _, err := stdout.Write(data); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	return 0
}

// runServe starts the local web server and blocks until ctx is cancelled.
func (a *app) runServe(ctx context.Context, cfg cliConfig, stderr io.Writer) int {
	fs := newCommandFlags("serve", stderr)
	bind := fs.String("bind", a.cfg.Bind, "Loopback listen address")
	if err := fs.Parse(cfg.args); err != nil {
		return 2
	}
	if *bind != a.cfg.Bind {
		override := *a.cfg
		override.Bind = *bind
		if err := override.Validate(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
	}

	srv, err := web.NewServer(ctx, web.ServerConfig{Addr: *bind}, web.Deps{
		Dashboard: a.agg,
		Watches:   a.registry,
		Goals:     a.svc,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stderr, "switchboard listening on http://%s\n", *bind)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runTUI runs the interactive dashboard, reloading it every cache TTL.
func (a *app) runTUI(ctx context.Context, stderr io.Writer) int {
	model := tui.NewDashboardModel(ctx, a.agg, a.cfg.CacheTTL)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runWatch follows one workflow until it finishes or the user quits. Polling
// always runs; the push feeds add updates between polls when reachable.
func (a *app) runWatch(ctx context.Context, cfg cliConfig, stdout, stderr io.Writer) int {
	fs := newCommandFlags("watch", stderr)
	plain := fs.Bool("plain", false, "Print updates as lines instead of the terminal UI")
	noFeed := fs.Bool("no-feed", false, "Poll only")
	if err := fs.Parse(cfg.args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "error: watch requires exactly one workflow id")
		return 2
	}
	workflowID := fs.Arg(0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *plain || cfg.jsonOutput {
		return a.watchPlain(ctx, workflowID, !*noFeed, cfg.jsonOutput, stdout, stderr)
	}

	bridge := tui.NewBridge(nil)
	sess, err := a.registry.Start(ctx, workflowID, bridge.OnChange)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !*noFeed {
		a.startFeeds(ctx, sess, bridge.OnDecision)
	}

	p := tea.NewProgram(tui.NewWatchModel(sess.Poller), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p.Send)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		sess.Poller.Stop()
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	sess.Poller.Stop()
	// Quitting the view is not a failure.
	if sess.Poller.State() == poller.StateFailed {
		return 1
	}
	return 0
}

// watchPlain prints each tracker change as a line of text or JSON.
func (a *app) watchPlain(ctx context.Context, workflowID string, feeds, jsonOutput bool, stdout, stderr io.Writer) int {
	var mu sync.Mutex
	onChange := func(u poller.Update) {
		mu.Lock()
		defer mu.Unlock()
		if jsonOutput {
			_ = json.NewEncoder(stdout).Encode(map[string]any{
				"workflow_id": u.WorkflowID,
				"snapshot":    u.Snapshot,
				"new_logs":    u.NewLogs,
			})
			return
		}
		if len(u.NewLogs) == 0 {
			fmt.Fprintf(stdout, "status=%s completion=%.0f%%\n", u.Snapshot.Status, u.Snapshot.CompletionPercentage)
		}
		for _, l := range u.NewLogs {
			fmt.Fprintf(stdout, "%s [%s] %s\n", l.Timestamp, l.Type, l.Message)
		}
	}
	onDecision := func(d feed.DecisionRequest) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(stderr, "decision required (iteration %d): %s [%s]\n",
			d.Iteration, d.Prompt, strings.Join(d.Options, "/"))
	}

	sess, err := a.registry.Start(ctx, workflowID, onChange)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if feeds {
		a.startFeeds(ctx, sess, onDecision)
	}

	if err := sess.Poller.Wait(ctx); err != nil {
		sess.Poller.Stop()
		<-sess.Poller.Done()
	}
	return exitCodeFor(sess.Poller.State())
}

// startFeeds runs the WebSocket feed, and the NATS feed when configured,
// against the session's tracker until ctx is cancelled. Feed failures are
// logged; polling carries on without them.
func (a *app) startFeeds(ctx context.Context, sess *poller.Session, onDecision func(feed.DecisionRequest)) {
	handler := feed.NewHandler(sess.Tracker(), onDecision)

	go func() {
		ws := feed.NewWebSocketFeed(a.cfg.WSBaseURL, a.cfg.APIKey, handler)
		if err := ws.Run(ctx, sess.WorkflowID); err != nil {
			log.Printf("component=cli action=feed_stopped transport=websocket workflow=%s err=%v", sess.WorkflowID, err)
		}
	}()

	if a.cfg.NATSURL == "" {
		return
	}
	go func() {
		nc, err := feed.DialNATS(a.cfg.NATSURL)
		if err != nil {
			log.Printf("component=cli action=feed_unavailable transport=nats err=%v", err)
			return
		}
		defer nc.Close()
		if err := feed.NewNATSFeed(nc, handler).Run(ctx, sess.WorkflowID); err != nil {
			log.Printf("component=cli action=feed_stopped transport=nats workflow=%s err=%v", sess.WorkflowID, err)
		}
	}()
}

// exitCodeFor maps a final poller state to a process exit code.
func exitCodeFor(s poller.State) int {
	switch s {
	case poller.StateFailed:
		return 1
	case poller.StateCancelled:
		return 130
	default:
		return 0
	}
}
