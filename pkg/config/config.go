// Package config loads and persists the simctl client configuration.
// Configuration lives in a single YAML file; every field has a built-in
// default so a missing file is not an error. Because the settings surface in
// the CLI can edit values at runtime, the package also supports writing the
// configuration back.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds the complete simctl configuration
type ClientConfig struct {
	Version string        `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Stream  StreamConfig  `yaml:"stream"`
	Polling PollingConfig `yaml:"polling"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds HTTP backend settings
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	// RequestsPerSecond caps outbound request rate; 0 disables the limiter
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// StreamConfig holds WebSocket streaming settings
type StreamConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// PollingConfig holds status polling intervals
type PollingConfig struct {
	// WaitInterval is used while a job is queued (WAIT), anticipating
	// quick backend pickup
	WaitInterval time.Duration `yaml:"wait_interval"`
	// ActiveInterval is used for all other non-terminal states
	ActiveInterval time.Duration `yaml:"active_interval"`
}

// StorageConfig holds local persistence settings
type StorageConfig struct {
	// Path of the JSON store file; empty selects ~/.simctl/jobs.json
	Path string `yaml:"path"`
	// Backend is "file" or "memory"
	Backend string `yaml:"backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig provides default configuration values. The backend defaults
// match a local SimulationControl API instance.
var DefaultConfig = ClientConfig{
	Version: "1.0",
	API: APIConfig{
		BaseURL:           "http://localhost:8000/SimulationControlApi/v1",
		Timeout:           30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Second,
		RequestsPerSecond: 0,
	},
	Stream: StreamConfig{
		BaseURL:           "ws://localhost:8000/SimulationControlApi/ws/v1",
		ReconnectAttempts: 5,
		ReconnectDelay:    3 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	},
	Polling: PollingConfig{
		WaitInterval:   3 * time.Minute,
		ActiveInterval: 10 * time.Minute,
	},
	Storage: StorageConfig{
		Path:    "",
		Backend: "file",
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
	},
}

// Load loads the client configuration.
//
//  1. Path given explicitly (from --config)
//  2. Path from SIMCTL_CONFIG environment variable
//  3. ./simctl-config.yml
//  4. ~/.simctl/simctl-config.yml
//  5. /etc/simctl/simctl-config.yml
//
// Missing file is not an error: built-in defaults apply. Environment
// variables SIMCTL_API_URL, SIMCTL_WS_URL and SIMCTL_LOG_LEVEL override
// whatever was loaded. Returns (config, path) where path names the source.
func Load(configPath string) (*ClientConfig, string, error) {
	config := DefaultConfig
	path := ""

	candidates := []string{configPath, os.Getenv("SIMCTL_CONFIG")}
	candidates = append(candidates, searchPaths()...)

	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			if p == configPath && configPath != "" {
				return nil, "", fmt.Errorf("config file not found: %s", p)
			}
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file %s: %w", p, err)
		}
		path = p
		break
	}

	if val := os.Getenv("SIMCTL_API_URL"); val != "" {
		config.API.BaseURL = val
	}
	if val := os.Getenv("SIMCTL_WS_URL"); val != "" {
		config.Stream.BaseURL = val
	}
	if val := os.Getenv("SIMCTL_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}

	if err := config.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, path, nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed. Used by the settings commands.
func (c *ClientConfig) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the per-user configuration file path
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./simctl-config.yml"
	}
	return filepath.Join(home, ".simctl", "simctl-config.yml")
}

// StorePath returns the effective local job store path
func (c *ClientConfig) StorePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./simctl-jobs.json"
	}
	return filepath.Join(home, ".simctl", "jobs.json")
}

// Validate performs validation of the configuration
func (c *ClientConfig) Validate() error {
	if err := validateURL(c.API.BaseURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid api.base_url: %w", err)
	}
	if err := validateURL(c.Stream.BaseURL, "ws", "wss"); err != nil {
		return fmt.Errorf("invalid stream.base_url: %w", err)
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1s, got %s", c.API.Timeout)
	}
	if c.API.RetryAttempts < 0 {
		return fmt.Errorf("api.retry_attempts must not be negative: %d", c.API.RetryAttempts)
	}
	if c.Stream.ReconnectAttempts < 0 {
		return fmt.Errorf("stream.reconnect_attempts must not be negative: %d", c.Stream.ReconnectAttempts)
	}
	if c.Polling.WaitInterval <= 0 || c.Polling.ActiveInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.Storage.Backend != "file" && c.Storage.Backend != "memory" {
		return fmt.Errorf("invalid storage.backend: %s", c.Storage.Backend)
	}
	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// SetBaseAddress derives both backend URLs from a bare "host:port" address.
// A missing port defaults to 8000; any protocol prefix supplied by the user
// is stripped first.
func (c *ClientConfig) SetBaseAddress(address string) error {
	addr := strings.TrimSpace(address)
	for _, prefix := range []string{"http://", "https://", "ws://", "wss://"} {
		addr = strings.TrimPrefix(addr, prefix)
	}
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		return fmt.Errorf("empty backend address")
	}
	if !strings.Contains(addr, ":") {
		addr += ":8000"
	}
	c.API.BaseURL = fmt.Sprintf("http://%s/SimulationControlApi/v1", addr)
	c.Stream.BaseURL = fmt.Sprintf("ws://%s/SimulationControlApi/ws/v1", addr)
	return nil
}

// BaseAddress extracts "host:port" from the configured HTTP base URL
func (c *ClientConfig) BaseAddress() string {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return "localhost:8000"
	}
	return u.Host
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not allowed for %q", u.Scheme, raw)
}

func searchPaths() []string {
	paths := []string{"./simctl-config.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".simctl", "simctl-config.yml"))
	}
	paths = append(paths, "/etc/simctl/simctl-config.yml")
	return paths
}
