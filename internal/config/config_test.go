// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portico.yaml")

	configContent := `
server:
  http_addr: "0.0.0.0:9090"

relay:
  enabled: true
  url: "wss://broker.example.com/gateway"
  heartbeat_interval: "15s"
  reconnect_delay: "2s"

engine:
  claude_binary: "/opt/bin/claude"

database:
  path: "./test.db"

workspace:
  dir: "/home/user/project"

logging:
  level: "debug"
  format: "json"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if !cfg.Relay.Enabled {
		t.Error("Relay.Enabled = false, want true")
	}
	if cfg.Relay.URL != "wss://broker.example.com/gateway" {
		t.Errorf("Relay.URL = %q", cfg.Relay.URL)
	}
	if cfg.Relay.HeartbeatInterval != 15*time.Second {
		t.Errorf("Relay.HeartbeatInterval = %v, want %v", cfg.Relay.HeartbeatInterval, 15*time.Second)
	}
	if cfg.Relay.ReconnectDelay != 2*time.Second {
		t.Errorf("Relay.ReconnectDelay = %v, want %v", cfg.Relay.ReconnectDelay, 2*time.Second)
	}
	if cfg.Engine.ClaudeBinary != "/opt/bin/claude" {
		t.Errorf("Engine.ClaudeBinary = %q", cfg.Engine.ClaudeBinary)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Workspace.Dir != "/home/user/project" {
		t.Errorf("Workspace.Dir = %q", cfg.Workspace.Dir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Relay.Enabled {
		t.Error("Relay.Enabled = true, want false by default")
	}
	if cfg.Relay.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Relay.HeartbeatInterval = %v, want %v", cfg.Relay.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Relay.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Relay.ReconnectDelay = %v, want %v", cfg.Relay.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Workspace.Dir == "" {
		t.Error("Workspace.Dir should default to the working directory")
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should have a default")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PORTICO_TEST_BROKER", "wss://broker.test/ws")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portico.yaml")
	configContent := `
relay:
  enabled: true
  url: "${PORTICO_TEST_BROKER}"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Relay.URL != "wss://broker.test/ws" {
		t.Errorf("Relay.URL = %q, want expanded env value", cfg.Relay.URL)
	}
}

func TestLoad_RelayEnabledRequiresURL(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portico.yaml")
	configContent := `
relay:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail when relay is enabled without a url")
	}
	if !strings.Contains(err.Error(), "relay.url") {
		t.Errorf("error %q should mention relay.url", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portico.yaml")
	configContent := `
relay:
  heartbeat_interval: "not-a-duration"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should fail on an unparseable duration")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "portico.yaml")
	if err := os.WriteFile(configPath, []byte("server: [not: valid"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}
