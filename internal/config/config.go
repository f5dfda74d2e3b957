// ABOUTME: Configuration loading and parsing for portico.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file omits a value.
const (
	DefaultHTTPAddr          = "127.0.0.1:8787"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
)

// Config represents the complete portico configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	Engine    EngineConfig    `yaml:"engine"`
	Database  DatabaseConfig  `yaml:"database"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the inbound HTTP transport configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// RelayConfig holds the outbound relay connection configuration.
type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`

	HeartbeatInterval time.Duration `yaml:"-"`
	ReconnectDelay    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	ReconnectDelayRaw    string `yaml:"reconnect_delay"`
}

// EngineConfig holds chat engine binary overrides.
type EngineConfig struct {
	ClaudeBinary string `yaml:"claude_binary"`
	CodexBinary  string `yaml:"codex_binary"`
}

// DatabaseConfig holds the device identity database path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WorkspaceConfig holds the working directory chat turns execute in.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values. A missing file is
// not an error: defaults apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// run entirely on defaults
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in any unset values.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Relay.HeartbeatInterval == 0 {
		c.Relay.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Relay.ReconnectDelay == 0 {
		c.Relay.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Workspace.Dir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Workspace.Dir = wd
		}
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath()
	}
}

// defaultDatabasePath resolves the identity database location under the
// user's data directory.
func defaultDatabasePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "portico.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "portico", "portico.db")
}

// Validate checks that all required configuration fields are present and
// coherent. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when relay is enabled")
	}
	if c.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("relay.heartbeat_interval must be positive")
	}
	if c.Relay.ReconnectDelay <= 0 {
		return fmt.Errorf("relay.reconnect_delay must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Relay.HeartbeatIntervalRaw != "" {
		cfg.Relay.HeartbeatInterval, err = time.ParseDuration(cfg.Relay.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Relay.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Relay.ReconnectDelayRaw != "" {
		cfg.Relay.ReconnectDelay, err = time.ParseDuration(cfg.Relay.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing reconnect_delay %q: %w", cfg.Relay.ReconnectDelayRaw, err)
		}
	}

	return nil
}
