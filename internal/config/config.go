// ABOUTME: Configuration loading and parsing for house-notify
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "HOUSE_NOTIFY_CONFIG"

const appDir = "house-notify"

// Config represents the complete house-notify configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Transport     TransportConfig     `yaml:"transport" toml:"transport"`
	Storage       StorageConfig       `yaml:"storage" toml:"storage"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the marketplace endpoints
type ServerConfig struct {
	APIBaseURL string `yaml:"api_base_url" toml:"api_base_url"`
	// WSBaseURL defaults to APIBaseURL with a ws:// or wss:// scheme
	WSBaseURL string `yaml:"ws_base_url" toml:"ws_base_url"`
}

// TransportConfig holds broker connection settings
type TransportConfig struct {
	Mode string `yaml:"mode" toml:"mode"` // websocket, fallback or tcp
	// TCPAddr is the broker address used in tcp mode
	TCPAddr string `yaml:"tcp_addr" toml:"tcp_addr"`

	ReconnectDelay    time.Duration `yaml:"-" toml:"-"`
	HeartbeatIncoming time.Duration `yaml:"-" toml:"-"`
	HeartbeatOutgoing time.Duration `yaml:"-" toml:"-"`
	DialTimeout       time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReconnectDelayRaw    string `yaml:"reconnect_delay" toml:"reconnect_delay"`
	HeartbeatIncomingRaw string `yaml:"heartbeat_incoming" toml:"heartbeat_incoming"`
	HeartbeatOutgoingRaw string `yaml:"heartbeat_outgoing" toml:"heartbeat_outgoing"`
	DialTimeoutRaw       string `yaml:"dial_timeout" toml:"dial_timeout"`
}

// StorageConfig selects where seen markers are persisted
type StorageConfig struct {
	Backend       string `yaml:"backend" toml:"backend"` // sqlite, redis or memory
	Path          string `yaml:"path" toml:"path"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" toml:"redis_prefix"`
}

// NotificationsConfig holds toast and catch-up tuning
type NotificationsConfig struct {
	PageSize int `yaml:"page_size" toml:"page_size"`

	ToastTimeout        time.Duration `yaml:"-" toml:"-"`
	AdminToastTimeout   time.Duration `yaml:"-" toml:"-"`
	CatchupDedupeWindow time.Duration `yaml:"-" toml:"-"`

	ToastTimeoutRaw        string `yaml:"toast_timeout" toml:"toast_timeout"`
	AdminToastTimeoutRaw   string `yaml:"admin_toast_timeout" toml:"admin_toast_timeout"`
	CatchupDedupeWindowRaw string `yaml:"catchup_dedupe_window" toml:"catchup_dedupe_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Dir returns $XDG_CONFIG_HOME/house-notify, or ~/.config/house-notify.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appDir)
	}
	return filepath.Join(home, ".config", appDir)
}

// DefaultPath returns the config file location: $HOUSE_NOTIFY_CONFIG if
// set, otherwise config.yaml in Dir().
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			APIBaseURL: "http://localhost:8080",
		},
		Transport: TransportConfig{
			Mode:                 "websocket",
			TCPAddr:              "localhost:61613",
			ReconnectDelayRaw:    "5s",
			HeartbeatIncomingRaw: "10s",
			HeartbeatOutgoingRaw: "10s",
			DialTimeoutRaw:       "10s",
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			Path:        filepath.Join(Dir(), "state.db"),
			RedisPrefix: "house-notify:",
		},
		Notifications: NotificationsConfig{
			PageSize:               50,
			ToastTimeoutRaw:        "5s",
			AdminToastTimeoutRaw:   "6s",
			CatchupDedupeWindowRaw: "10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	// Defaults are constants, so this cannot fail.
	_ = parseDurations(cfg)
	cfg.applyDerived()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	cfg.Server.WSBaseURL = ""
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDerived() {
	if c.Server.WSBaseURL == "" {
		c.Server.WSBaseURL = wsFromHTTP(c.Server.APIBaseURL)
	}
}

func wsFromHTTP(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.APIBaseURL)
	if err != nil || c.Server.APIBaseURL == "" {
		return fmt.Errorf("server.api_base_url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.api_base_url must use http or https scheme")
	}

	switch c.Transport.Mode {
	case "websocket", "fallback":
		ws, err := url.Parse(c.Server.WSBaseURL)
		if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
			return fmt.Errorf("server.ws_base_url must use ws or wss scheme")
		}
	case "tcp":
		if c.Transport.TCPAddr == "" {
			return fmt.Errorf("transport.tcp_addr is required in tcp mode")
		}
	default:
		return fmt.Errorf("transport.mode must be websocket, fallback or tcp, got %q", c.Transport.Mode)
	}
	if c.Transport.ReconnectDelay <= 0 {
		return fmt.Errorf("transport.reconnect_delay must be positive")
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be sqlite, redis or memory, got %q", c.Storage.Backend)
	}

	if c.Notifications.ToastTimeout <= 0 || c.Notifications.AdminToastTimeout <= 0 {
		return fmt.Errorf("notifications toast timeouts must be positive")
	}
	if c.Notifications.PageSize <= 0 {
		return fmt.Errorf("notifications.page_size must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"reconnect_delay", cfg.Transport.ReconnectDelayRaw, &cfg.Transport.ReconnectDelay},
		{"heartbeat_incoming", cfg.Transport.HeartbeatIncomingRaw, &cfg.Transport.HeartbeatIncoming},
		{"heartbeat_outgoing", cfg.Transport.HeartbeatOutgoingRaw, &cfg.Transport.HeartbeatOutgoing},
		{"dial_timeout", cfg.Transport.DialTimeoutRaw, &cfg.Transport.DialTimeout},
		{"toast_timeout", cfg.Notifications.ToastTimeoutRaw, &cfg.Notifications.ToastTimeout},
		{"admin_toast_timeout", cfg.Notifications.AdminToastTimeoutRaw, &cfg.Notifications.AdminToastTimeout},
		{"catchup_dedupe_window", cfg.Notifications.CatchupDedupeWindowRaw, &cfg.Notifications.CatchupDedupeWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
