// Package config handles configuration loading for portico.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. The package provides validation and sensible defaults; a missing
// file is not an error, the gateway runs entirely on defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PORTICO_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/portico/portico.yaml
//  3. ~/.config/portico/portico.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	relay:
//	  url: "${PORTICO_BROKER_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	relay:
//	  heartbeat_interval: "30s"
//	  reconnect_delay: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "127.0.0.1:8787"
//
// Relay (outbound broker connection):
//
//	relay:
//	  enabled: true
//	  url: "wss://broker.example.com/gateway"
//	  heartbeat_interval: "30s"
//	  reconnect_delay: "5s"
//
// Chat engine binary overrides:
//
//	engine:
//	  claude_binary: "/usr/local/bin/claude"
//	  codex_binary: "/usr/local/bin/codex"
//
// Device identity database:
//
//	database:
//	  path: "~/.local/share/portico/portico.db"
//
// Workspace (the directory chat turns execute in, defaults to the working
// directory of the process):
//
//	workspace:
//	  dir: "/home/user/project"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - relay.url present when the relay is enabled
//   - Duration format validity and positivity
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
