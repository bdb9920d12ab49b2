package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in server.transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Config holds all eduattend client configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Health     HealthConfig     `yaml:"health"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Questions  []QuestionConfig `yaml:"questions,omitempty"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig points the client at the attendance agent backend.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Transport      string `yaml:"transport"`       // http or websocket
	RequestTimeout string `yaml:"request_timeout"` // non-streaming calls
	ProbeTimeout   string `yaml:"probe_timeout"`   // health probe
}

// HealthConfig configures the connectivity poller.
type HealthConfig struct {
	PollInterval  string `yaml:"poll_interval"`  // while online or checking
	RetryInterval string `yaml:"retry_interval"` // while offline
}

// ArtifactsConfig configures artifact detection and download.
type ArtifactsConfig struct {
	Extensions  []string `yaml:"extensions"`
	DownloadDir string   `yaml:"download_dir"`
}

// DefaultConfigPath returns ~/.eduattend/config.yaml, or a relative path when
// the home directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".eduattend", "config.yaml")
	}
	return filepath.Join(home, ".eduattend", "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			Transport:      TransportHTTP,
			RequestTimeout: "30s",
			ProbeTimeout:   "5s",
		},
		Health: HealthConfig{
			PollInterval:  "30s",
			RetryInterval: "10s",
		},
		Artifacts: ArtifactsConfig{
			Extensions:  []string{"pdf"},
			DownloadDir: "downloads",
		},
		Heuristics: HeuristicsConfig{
			Locale: "id",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Dir:    filepath.Join(".eduattend", "logs"),
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EDUATTEND_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("EDUATTEND_TRANSPORT"); v != "" {
		c.Server.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("EDUATTEND_LOCALE"); v != "" {
		c.Heuristics.Locale = v
	}
	if v := os.Getenv("EDUATTEND_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url %q is not an absolute URL", c.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", u.Scheme)
	}

	switch c.Server.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("invalid server.transport: %q", c.Server.Transport)
	}

	for name, raw := range map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"server.probe_timeout":   c.Server.ProbeTimeout,
		"health.poll_interval":   c.Health.PollInterval,
		"health.retry_interval":  c.Health.RetryInterval,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", name, raw)
		}
	}

	if len(c.Artifacts.Extensions) == 0 {
		return fmt.Errorf("artifacts.extensions must not be empty")
	}

	for i, q := range c.Questions {
		if err := q.validate(); err != nil {
			return fmt.Errorf("questions[%d]: %w", i, err)
		}
	}

	return nil
}

// GetRequestTimeout returns the non-streaming request timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDurationOr(c.Server.RequestTimeout, 30*time.Second)
}

// GetProbeTimeout returns the health probe timeout.
func (c *Config) GetProbeTimeout() time.Duration {
	return parseDurationOr(c.Server.ProbeTimeout, 5*time.Second)
}

// GetPollInterval returns the poll interval used while online.
func (c *Config) GetPollInterval() time.Duration {
	return parseDurationOr(c.Health.PollInterval, 30*time.Second)
}

// GetRetryInterval returns the shortened poll interval used while offline.
func (c *Config) GetRetryInterval() time.Duration {
	return parseDurationOr(c.Health.RetryInterval, 10*time.Second)
}

func parseDurationOr(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
