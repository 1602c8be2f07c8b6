// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  api_base_url: "https://rent.example.com"

transport:
  mode: "fallback"
  reconnect_delay: "2s"
  heartbeat_incoming: "15s"
  heartbeat_outgoing: "20s"

storage:
  backend: "sqlite"
  path: "./state.db"

notifications:
  toast_timeout: "4s"
  admin_toast_timeout: "7s"
  page_size: 25
  catchup_dedupe_window: "1m"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.APIBaseURL != "https://rent.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.Server.APIBaseURL)
	}
	if cfg.Server.WSBaseURL != "wss://rent.example.com" {
		t.Errorf("WSBaseURL = %q, want derived wss URL", cfg.Server.WSBaseURL)
	}
	if cfg.Transport.Mode != "fallback" {
		t.Errorf("Mode = %q, want fallback", cfg.Transport.Mode)
	}
	if cfg.Transport.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want 2s", cfg.Transport.ReconnectDelay)
	}
	if cfg.Transport.HeartbeatIncoming != 15*time.Second {
		t.Errorf("HeartbeatIncoming = %v, want 15s", cfg.Transport.HeartbeatIncoming)
	}
	if cfg.Transport.HeartbeatOutgoing != 20*time.Second {
		t.Errorf("HeartbeatOutgoing = %v, want 20s", cfg.Transport.HeartbeatOutgoing)
	}
	if cfg.Storage.Path != "./state.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Notifications.ToastTimeout != 4*time.Second {
		t.Errorf("ToastTimeout = %v, want 4s", cfg.Notifications.ToastTimeout)
	}
	if cfg.Notifications.AdminToastTimeout != 7*time.Second {
		t.Errorf("AdminToastTimeout = %v, want 7s", cfg.Notifications.AdminToastTimeout)
	}
	if cfg.Notifications.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.Notifications.PageSize)
	}
	if cfg.Notifications.CatchupDedupeWindow != time.Minute {
		t.Errorf("CatchupDedupeWindow = %v, want 1m", cfg.Notifications.CatchupDedupeWindow)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
api_base_url = "http://localhost:9090"
ws_base_url = "ws://broker.local:9091"

[transport]
mode = "tcp"
tcp_addr = "broker.local:61613"
reconnect_delay = "1s"

[storage]
backend = "redis"
redis_addr = "localhost:6379"
redis_prefix = "hn:"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.WSBaseURL != "ws://broker.local:9091" {
		t.Errorf("WSBaseURL = %q, explicit value should win", cfg.Server.WSBaseURL)
	}
	if cfg.Transport.Mode != "tcp" || cfg.Transport.TCPAddr != "broker.local:61613" {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	if cfg.Transport.ReconnectDelay != time.Second {
		t.Errorf("ReconnectDelay = %v, want 1s", cfg.Transport.ReconnectDelay)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.RedisPrefix != "hn:" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	// Untouched keys keep their defaults
	if cfg.Transport.HeartbeatIncoming != 10*time.Second {
		t.Errorf("HeartbeatIncoming = %v, want default 10s", cfg.Transport.HeartbeatIncoming)
	}
	if cfg.Notifications.AdminToastTimeout != 6*time.Second {
		t.Errorf("AdminToastTimeout = %v, want default 6s", cfg.Notifications.AdminToastTimeout)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Transport.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.Transport.ReconnectDelay)
	}
	if cfg.Notifications.ToastTimeout != 5*time.Second {
		t.Errorf("ToastTimeout = %v, want 5s", cfg.Notifications.ToastTimeout)
	}
	if cfg.Server.WSBaseURL != "ws://localhost:8080" {
		t.Errorf("WSBaseURL = %q", cfg.Server.WSBaseURL)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HN_API", "https://api.example.com")
	t.Setenv("TEST_HN_REDIS_PASSWORD", "s3cret")

	path := writeConfig(t, "config.yaml", `
server:
  api_base_url: "${TEST_HN_API}"
storage:
  backend: "redis"
  redis_addr: "localhost:6379"
  redis_password: "${TEST_HN_REDIS_PASSWORD}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.Server.APIBaseURL)
	}
	if cfg.Storage.RedisPassword != "s3cret" {
		t.Errorf("RedisPassword = %q", cfg.Storage.RedisPassword)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want default sqlite", cfg.Storage.Backend)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server:\n  api_base_url: [unclosed\n")

	_, err := LoadOrDefault(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parsing context", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
transport:
  reconnect_delay: "soon"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected duration error")
	}
	if !strings.Contains(err.Error(), "reconnect_delay") {
		t.Errorf("error = %v, want field name", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad api scheme", func(c *Config) { c.Server.APIBaseURL = "ftp://x" }, "api_base_url"},
		{"bad ws scheme", func(c *Config) { c.Server.WSBaseURL = "http://x" }, "ws_base_url"},
		{"tcp without addr", func(c *Config) { c.Transport.Mode = "tcp"; c.Transport.TCPAddr = "" }, "tcp_addr"},
		{"unknown mode", func(c *Config) { c.Transport.Mode = "pigeon" }, "transport.mode"},
		{"zero reconnect", func(c *Config) { c.Transport.ReconnectDelay = 0 }, "reconnect_delay"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis" }, "redis_addr"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"memory backend", func(c *Config) { c.Storage.Backend = "memory"; c.Storage.Path = "" }, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "tape" }, "storage.backend"},
		{"zero page size", func(c *Config) { c.Notifications.PageSize = 0 }, "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/hn.toml")
	if got := DefaultPath(); got != "/etc/hn.toml" {
		t.Errorf("DefaultPath() = %q, want env override", got)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultPath(); got != filepath.Join("/tmp/xdg", "house-notify", "config.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single env var", "${FOO}", "bar"},
		{"env var with surrounding text", "prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"multiple env vars", "${FOO}/${BAZ}", "bar/qux"},
		{"no env vars", "no-vars-here", "no-vars-here"},
		{"unset env var", "${UNSET_VAR}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
