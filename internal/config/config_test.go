package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flightpoll.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FLIGHTPOLL_BASE_URL", "https://api.example.com/v1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Upstream.RequestTimeout != 30*time.Second || cfg.Upstream.PageSize != 30 {
		t.Errorf("Upstream = %+v", cfg.Upstream)
	}
	if cfg.Upstream.MaxRetries != 3 || cfg.Upstream.RetryBackoff != 500*time.Millisecond || cfg.Upstream.MaxBackoff != 8*time.Second {
		t.Errorf("retry settings = %+v", cfg.Upstream)
	}
	if cfg.Polling.ConvergenceDelay != 2*time.Second || cfg.Polling.MaxConvergencePolls != 30 || cfg.Polling.IdleTTL != 10*time.Minute {
		t.Errorf("Polling = %+v", cfg.Polling)
	}
	if cfg.Cache.Enabled || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Prefs.Country != "IN" || cfg.Prefs.Currency != "INR" || cfg.Prefs.Language != "en" {
		t.Errorf("Prefs = %+v", cfg.Prefs)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
port: "9090"
upstream:
  base_url: https://flights.example.com/api
  page_size: 50
  retry_backoff: 250ms
  host_limits:
    partners.example.com:8443:
      rate_limit: 2
      rate_burst: 4
polling:
  convergence_delay: 3s
  max_convergence_polls: 0
  idle_ttl: 90s
cache:
  enabled: true
  ttl: 10m
prefs:
  database: /var/lib/flightpoll/prefs.db
  currency: GBP
log:
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" || cfg.Upstream.BaseURL != "https://flights.example.com/api" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Upstream.PageSize != 50 || cfg.Upstream.RetryBackoff != 250*time.Millisecond {
		t.Errorf("Upstream = %+v", cfg.Upstream)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Upstream.MaxRetries != 3 || cfg.Prefs.Country != "IN" {
		t.Errorf("defaults lost: %+v / %+v", cfg.Upstream, cfg.Prefs)
	}
	if cfg.Polling.ConvergenceDelay != 3*time.Second || cfg.Polling.MaxConvergencePolls != 0 || cfg.Polling.IdleTTL != 90*time.Second {
		t.Errorf("Polling = %+v", cfg.Polling)
	}
	if got := cfg.Upstream.HostLimits["partners.example.com:8443"]; got != (HostLimit{RateLimit: 2, RateBurst: 4}) {
		t.Errorf("HostLimits = %+v", cfg.Upstream.HostLimits)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Prefs.Database != "/var/lib/flightpoll/prefs.db" || cfg.Prefs.Currency != "GBP" {
		t.Errorf("Prefs = %+v", cfg.Prefs)
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, `
upstream:
  base_url: https://flights.example.com/api
  max_retries: 1
`)
	t.Setenv("FLIGHTPOLL_BASE_URL", "https://override.example.com")
	t.Setenv("FLIGHTPOLL_MAX_RETRIES", "5")
	t.Setenv("FLIGHTPOLL_CONVERGENCE_DELAY", "750ms")
	t.Setenv("FLIGHTPOLL_IDLE_TTL", "0s")
	t.Setenv("CACHE_ENABLED", "yes")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("PORT", "3000")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.com/1")
	t.Setenv("FLIGHTPOLL_PAGE_SIZE", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Upstream.BaseURL != "https://override.example.com" || cfg.Upstream.MaxRetries != 5 {
		t.Errorf("Upstream = %+v", cfg.Upstream)
	}
	if cfg.Polling.ConvergenceDelay != 750*time.Millisecond || cfg.Polling.IdleTTL != 0 {
		t.Errorf("Polling = %+v", cfg.Polling)
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisHost != "redis.internal" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Port != "3000" || cfg.Sentry.DSN == "" {
		t.Errorf("Port=%q DSN=%q", cfg.Port, cfg.Sentry.DSN)
	}
	if cfg.Upstream.PageSize != 30 {
		t.Errorf("malformed env value should keep the previous value, got %d", cfg.Upstream.PageSize)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Upstream.BaseURL = "https://api.example.com"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.Upstream.BaseURL = "" }, "base_url is required"},
		{"relative base url", func(c *Config) { c.Upstream.BaseURL = "/api" }, "absolute url"},
		{"zero page size", func(c *Config) { c.Upstream.PageSize = 0 }, "page_size"},
		{"negative retries", func(c *Config) { c.Upstream.MaxRetries = -1 }, "max_retries"},
		{"backoff above cap", func(c *Config) { c.Upstream.RetryBackoff = time.Minute }, "retry_backoff"},
		{"negative convergence polls", func(c *Config) { c.Polling.MaxConvergencePolls = -1 }, "max_convergence_polls"},
		{"negative idle ttl", func(c *Config) { c.Polling.IdleTTL = -time.Second }, "idle_ttl"},
		{"host limit without burst", func(c *Config) {
			c.Upstream.HostLimits = map[string]HostLimit{"api.example.com": {RateLimit: 1}}
		}, "host_limits[api.example.com]"},
		{"cache without ttl", func(c *Config) { c.Cache.Enabled = true; c.Cache.TTL = 0 }, "cache.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
