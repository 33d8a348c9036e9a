// ABOUTME: Client configuration loaded from SWITCHBOARD_* environment variables and an optional YAML file.
// ABOUTME: Validates URLs and timeouts and refuses non-loopback binds for the local web server.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrNonPositive     = errors.New("value must be positive")
	ErrNonLoopbackBind = errors.New(
		"SWITCHBOARD_BIND is a non-loopback address; the local server has no authentication and only listens on loopback",
	)
)

// Config holds every externally supplied setting.
type Config struct {
	APIBaseURL     string        `yaml:"api_base_url"`    // SWITCHBOARD_API_BASE_URL
	WSBaseURL      string        `yaml:"ws_base_url"`     // SWITCHBOARD_WS_BASE_URL, derived from APIBaseURL when empty
	NATSURL        string        `yaml:"nats_url"`        // SWITCHBOARD_NATS_URL, empty disables the NATS feed
	APIKey         string        `yaml:"api_key"`         // SWITCHBOARD_API_KEY
	CacheTTL       time.Duration `yaml:"cache_ttl"`       // SWITCHBOARD_CACHE_TTL
	PollInterval   time.Duration `yaml:"poll_interval"`   // SWITCHBOARD_POLL_INTERVAL
	RequestTimeout time.Duration `yaml:"request_timeout"` // SWITCHBOARD_REQUEST_TIMEOUT
	GoalTimeout    time.Duration `yaml:"goal_timeout"`    // SWITCHBOARD_GOAL_TIMEOUT
	RecentLimit    int           `yaml:"recent_limit"`    // SWITCHBOARD_RECENT_LIMIT
	Bind           string        `yaml:"bind"`            // SWITCHBOARD_BIND
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:5001/api",
		CacheTTL:       60 * time.Second,
		PollInterval:   3 * time.Second,
		RequestTimeout: 10 * time.Second,
		GoalTimeout:    60 * time.Second,
		RecentLimit:    5,
		Bind:           "127.0.0.1:7780",
	}
}

// FromEnv builds the configuration: defaults, then the YAML file named by
// SWITCHBOARD_CONFIG, then SWITCHBOARD_* variables. The result is validated.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("SWITCHBOARD_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = deriveWSURL(cfg.APIBaseURL)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIBaseURL = envOrDefault("SWITCHBOARD_API_BASE_URL", c.APIBaseURL)
	c.WSBaseURL = envOrDefault("SWITCHBOARD_WS_BASE_URL", c.WSBaseURL)
	c.NATSURL = envOrDefault("SWITCHBOARD_NATS_URL", c.NATSURL)
	c.APIKey = envOrDefault("SWITCHBOARD_API_KEY", c.APIKey)
	c.Bind = envOrDefault("SWITCHBOARD_BIND", c.Bind)

	var errs []error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SWITCHBOARD_CACHE_TTL", &c.CacheTTL},
		{"SWITCHBOARD_POLL_INTERVAL", &c.PollInterval},
		{"SWITCHBOARD_REQUEST_TIMEOUT", &c.RequestTimeout},
		{"SWITCHBOARD_GOAL_TIMEOUT", &c.GoalTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", d.key, v, err))
			continue
		}
		*d.dst = parsed
	}
	if v := os.Getenv("SWITCHBOARD_RECENT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SWITCHBOARD_RECENT_LIMIT=%q: %w", v, err))
		} else {
			c.RecentLimit = n
		}
	}
	return errors.Join(errs...)
}

// Validate checks URLs, durations, and the bind address.
func (c *Config) Validate() error {
	var errs []error
	if err := checkURL("api_base_url", c.APIBaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.WSBaseURL != "" {
		if err := checkURL("ws_base_url", c.WSBaseURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.NATSURL != "" {
		if err := checkURL("nats_url", c.NATSURL, "nats", "tls", "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	for name, d := range map[string]time.Duration{
		"cache_ttl":       c.CacheTTL,
		"poll_interval":   c.PollInterval,
		"request_timeout": c.RequestTimeout,
		"goal_timeout":    c.GoalTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s=%s: %w", name, d, ErrNonPositive))
		}
	}
	if c.RecentLimit <= 0 {
		errs = append(errs, fmt.Errorf("recent_limit=%d: %w", c.RecentLimit, ErrNonPositive))
	}
	if err := checkLoopback(c.Bind); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s=%q: %w", name, raw, ErrInvalidURL)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s=%q: scheme must be one of %s: %w", name, raw, strings.Join(schemes, ", "), ErrInvalidURL)
}

// checkLoopback accepts 127.0.0.0/8, ::1, and "localhost".
func checkLoopback(bind string) error {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return fmt.Errorf("bind=%q: %w", bind, err)
	}
	ip := net.ParseIP(host)
	switch {
	case ip != nil && ip.IsLoopback():
		return nil
	case ip == nil && host == "localhost":
		return nil
	}
	return fmt.Errorf("%w: SWITCHBOARD_BIND=%s", ErrNonLoopbackBind, bind)
}

// deriveWSURL swaps the scheme of the API URL for its WebSocket equivalent.
func deriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
