// Package config handles configuration loading for house-notify.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment
// variable expansion. Every key has a default, so a missing file is not an
// error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HOUSE_NOTIFY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/house-notify/config.yaml
//  3. ~/.config/house-notify/config.yaml
//
// A path ending in .toml is parsed as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	storage:
//	  redis_password: "${HOUSE_NOTIFY_REDIS_PASSWORD}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	transport:
//	  reconnect_delay: "5s"
//	notifications:
//	  toast_timeout: "5s"
//
// # Example
//
//	server:
//	  api_base_url: "https://rent.example.com"
//	transport:
//	  mode: "websocket"
//	  reconnect_delay: "5s"
//	  heartbeat_incoming: "10s"
//	  heartbeat_outgoing: "10s"
//	storage:
//	  backend: "sqlite"
//	  path: "/var/lib/house-notify/state.db"
//	notifications:
//	  toast_timeout: "5s"
//	  admin_toast_timeout: "6s"
//	  page_size: 50
//	logging:
//	  level: "info"
//	  format: "text"
package config
