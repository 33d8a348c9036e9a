// ABOUTME: Tests for configuration loading from defaults, YAML file, and SWITCHBOARD_* variables.
// ABOUTME: Verifies precedence, derived WebSocket URL, and validation failures.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"SWITCHBOARD_CONFIG",
	"SWITCHBOARD_API_BASE_URL",
	"SWITCHBOARD_WS_BASE_URL",
	"SWITCHBOARD_NATS_URL",
	"SWITCHBOARD_API_KEY",
	"SWITCHBOARD_CACHE_TTL",
	"SWITCHBOARD_POLL_INTERVAL",
	"SWITCHBOARD_REQUEST_TIMEOUT",
	"SWITCHBOARD_GOAL_TIMEOUT",
	"SWITCHBOARD_RECENT_LIMIT",
	"SWITCHBOARD_BIND",
}

// clearEnv blanks every SWITCHBOARD_* variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:5001/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.WSBaseURL != "ws://localhost:5001/api" {
		t.Errorf("WSBaseURL = %q, want derived ws URL", cfg.WSBaseURL)
	}
	if cfg.CacheTTL != 60*time.Second || cfg.PollInterval != 3*time.Second || cfg.RequestTimeout != 10*time.Second {
		t.Errorf("durations = %v %v %v", cfg.CacheTTL, cfg.PollInterval, cfg.RequestTimeout)
	}
	if cfg.NATSURL != "" {
		t.Errorf("NATSURL = %q, want disabled", cfg.NATSURL)
	}
	if cfg.Bind != "127.0.0.1:7780" {
		t.Errorf("Bind = %q", cfg.Bind)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SWITCHBOARD_API_BASE_URL", "https://orchestrator.example.com/api")
	t.Setenv("SWITCHBOARD_API_KEY", "sk-test")
	t.Setenv("SWITCHBOARD_POLL_INTERVAL", "2s")
	t.Setenv("SWITCHBOARD_GOAL_TIMEOUT", "2m")
	t.Setenv("SWITCHBOARD_RECENT_LIMIT", "10")
	t.Setenv("SWITCHBOARD_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.WSBaseURL != "wss://orchestrator.example.com/api" {
		t.Errorf("WSBaseURL = %q", cfg.WSBaseURL)
	}
	if cfg.APIKey != "sk-test" || cfg.PollInterval != 2*time.Second || cfg.GoalTimeout != 2*time.Minute || cfg.RecentLimit != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
}

func TestFromEnvYAMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "switchboard.yaml")
	content := `api_base_url: http://10.0.0.5:5001/api
api_key: from-file
cache_ttl: 30s
recent_limit: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SWITCHBOARD_CONFIG", path)
	t.Setenv("SWITCHBOARD_API_KEY", "from-env")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIBaseURL != "http://10.0.0.5:5001/api" || cfg.CacheTTL != 30*time.Second || cfg.RecentLimit != 8 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q, env should win over file", cfg.APIKey)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %v, default should survive the overlay", cfg.PollInterval)
	}
}

func TestFromEnvMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SWITCHBOARD_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want error
	}{
		{"unparseable duration", "SWITCHBOARD_POLL_INTERVAL", "soon", nil},
		{"zero timeout", "SWITCHBOARD_REQUEST_TIMEOUT", "0s", ErrNonPositive},
		{"negative ttl", "SWITCHBOARD_CACHE_TTL", "-5s", ErrNonPositive},
		{"relative url", "SWITCHBOARD_API_BASE_URL", "/api", ErrInvalidURL},
		{"wrong ws scheme", "SWITCHBOARD_WS_BASE_URL", "http://localhost:5001", ErrInvalidURL},
		{"public bind", "SWITCHBOARD_BIND", "0.0.0.0:7780", ErrNonLoopbackBind},
		{"hostname bind", "SWITCHBOARD_BIND", "myhost:7780", ErrNonLoopbackBind},
		{"zero recent limit", "SWITCHBOARD_RECENT_LIMIT", "0", ErrNonPositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoopbackBindsAccepted(t *testing.T) {
	for _, bind := range []string{"127.0.0.1:7780", "127.0.0.2:80", "[::1]:7780", "localhost:7780"} {
		if err := checkLoopback(bind); err != nil {
			t.Errorf("checkLoopback(%q) = %v", bind, err)
		}
	}
}
