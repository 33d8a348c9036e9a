// ABOUTME: Tests for the switchboard CLI help display covering content, formatting, and env detection.
// ABOUTME: Checks every command, flag, and environment variable appears in the help output.
package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintHelpContainsProjectNameAndVersion(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "1.2.3")
	out := buf.String()

	if !strings.Contains(out, "switchboard 1.2.3") {
		t.Errorf("expected help to contain name and version, got %q", out)
	}
}

func TestPrintHelpContainsCommands(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "dev")
	out := buf.String()

	for _, cmd := range []string{"dashboard", "watch <workflow-id>", "goal <text>", "health", "serve", "tui", "version"} {
		if !strings.Contains(out, "switchboard [flags] "+cmd) && !strings.Contains(out, "switchboard "+cmd) {
			t.Errorf("expected help to list command %q", cmd)
		}
	}
}

func TestPrintHelpContainsAllFlags(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "dev")
	out := buf.String()

	for _, f := range []string{"-config", "-json", "-verbose", "-version", "-plain", "-no-feed", "-context", "-format", "-refresh", "-bind"} {
		if !strings.Contains(out, f) {
			t.Errorf("expected help to contain flag %q", f)
		}
	}
}

func TestPrintHelpSections(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "dev")
	out := buf.String()

	for _, section := range []string{"Usage:", "Flags:", "Command Flags:", "Examples:", "Environment:"} {
		if !strings.Contains(out, section) {
			t.Errorf("expected help to contain section %q", section)
		}
	}
}

func TestPrintHelpShowsEnvStatus(t *testing.T) {
	t.Setenv("SWITCHBOARD_API_KEY", "secret")
	t.Setenv("SWITCHBOARD_NATS_URL", "")

	var buf bytes.Buffer
	printHelp(&buf, "dev")
	out := buf.String()

	if strings.Contains(out, "secret") {
		t.Error("help must not print environment values")
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "SWITCHBOARD_API_KEY"):
			if !strings.Contains(line, "[set]") {
				t.Errorf("expected API key line to show [set], got %q", line)
			}
		case strings.Contains(line, "SWITCHBOARD_NATS_URL"):
			if !strings.Contains(line, "[not set]") {
				t.Errorf("expected NATS line to show [not set], got %q", line)
			}
		}
	}
}

func TestEnvStatus(t *testing.T) {
	t.Setenv("SWITCHBOARD_TEST_PRESENT", "x")
	t.Setenv("SWITCHBOARD_TEST_ABSENT", "")

	if got := envStatus("SWITCHBOARD_TEST_PRESENT"); got != "[set]" {
		t.Errorf("expected [set], got %q", got)
	}
	if got := envStatus("SWITCHBOARD_TEST_ABSENT"); got != "[not set]" {
		t.Errorf("expected [not set], got %q", got)
	}
}
