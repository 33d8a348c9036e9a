// ABOUTME: CLI entrypoint for switchboard with dashboard, watch, goal, health, serve, and tui commands.
// ABOUTME: Loads .env and configuration, wires the client stack, and handles SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/2389-research/switchboard/config"
)

var version = "dev"

// cliConfig holds the global flags and the command line that follows them.
type cliConfig struct {
	configFile  string
	jsonOutput  bool
	verbose     bool
	showVersion bool
	command     string
	args        []string
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// parseArgs parses the global flags. The first positional argument is the
// command; everything after it belongs to the command.
func parseArgs(args []string, stderr io.Writer) (cliConfig, error) {
	var cfg cliConfig

	fs := flag.NewFlagSet("switchboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.configFile, "config", "", "YAML config file (overrides SWITCHBOARD_CONFIG)")
	fs.BoolVar(&cfg.jsonOutput, "json", false, "Print machine-readable JSON")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Log client, cache, and poller activity to stderr")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	if fs.NArg() > 0 {
		cfg.command = fs.Arg(0)
		cfg.args = fs.Args()[1:]
	}
	return cfg, nil
}

// run dispatches to the command. Returns an exit code: 0 for success, 1 for
// failure, 2 for usage errors.
func run(ctx context.Context, cfg cliConfig, stdout, stderr io.Writer) int {
	if cfg.showVersion || cfg.command == "version" {
		fmt.Fprintf(stdout, "switchboard %s\n", version)
		return 0
	}
	if cfg.command == "" || cfg.command == "help" {
		printHelp(stdout, version)
		return 0
	}

	if cfg.configFile != "" {
		if err := os.Setenv("SWITCHBOARD_CONFIG", cfg.configFile); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	settings, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	restoreLog := configureLogging(cfg.verbose, stderr)
	defer restoreLog()

	a := newApp(settings)
	defer a.close()

	switch cfg.command {
	case "dashboard":
		return a.runDashboard(ctx, cfg, stdout, stderr)
	case "watch":
		return a.runWatch(ctx, cfg, stdout, stderr)
	case "goal":
		return a.runGoal(ctx, cfg, stdout, stderr)
	case "health":
		return a.runHealth(ctx, cfg, stdout, stderr)
	case "serve":
		return a.runServe(ctx, cfg, stderr)
	case "tui":
		return a.runTUI(ctx, stderr)
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", cfg.command)
		printHelp(stderr, version)
		return 2
	}
}
