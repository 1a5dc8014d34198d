// Package config provides configuration types, defaults, and persistence for pipewatch.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/tracing"
)

// maxStartCount matches the largest run the service accepts.
const maxStartCount = 500

// Config holds all configuration options for pipewatch.
type Config struct {
	ServerURL string          `mapstructure:"server_url"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Poll      PollConfig      `mapstructure:"poll"`
	Start     StartConfig     `mapstructure:"start"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Flags     map[string]bool `mapstructure:"flags"`
}

// StreamConfig configures the event stream connection.
type StreamConfig struct {
	// ReconnectDelay is the fixed wait before reopening a failed stream.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// PollConfig configures the polling fallback and snapshot page sizes.
type PollConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	LeadsLimit int           `mapstructure:"leads_limit"`
	LogsLimit  int           `mapstructure:"logs_limit"`
}

// StartConfig holds the options pre-filled in the start form. The last
// options used are written back here.
type StartConfig struct {
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
	AIMode bool `mapstructure:"ai_mode" yaml:"ai_mode"`
	Count  int  `mapstructure:"count" yaml:"count"`
}

// CacheConfig configures the lead-message cache.
type CacheConfig struct {
	MessageTTL time.Duration `mapstructure:"message_ttl"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		ServerURL: "http://localhost:8000",
		Stream: StreamConfig{
			ReconnectDelay: 3 * time.Second,
		},
		Poll: PollConfig{
			Interval:   2 * time.Second,
			LeadsLimit: 50,
			LogsLimit:  100,
		},
		Start: StartConfig{
			DryRun: true,
			AIMode: false,
			Count:  10,
		},
		Cache: CacheConfig{
			MessageTTL: 10 * time.Minute,
		},
		Tracing: tc,
	}
}

// DefaultTracesFilePath returns ~/.config/pipewatch/traces/traces.jsonl, or
// an empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pipewatch", "traces", "traces.jsonl")
}

// Validate checks the whole configuration. Zero durations and limits are
// allowed and mean "use the default".
func Validate(c Config) error {
	return errors.Join(
		ValidateServerURL(c.ServerURL),
		validateStream(c.Stream),
		validatePoll(c.Poll),
		validateStart(c.Start),
		validateCache(c.Cache),
		ValidateTracing(c.Tracing),
	)
}

// ValidateServerURL requires an absolute http or https URL.
func ValidateServerURL(raw string) error {
	if raw == "" {
		return errors.New("server_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("server_url must include a host, got %q", raw)
	}
	return nil
}

func validateStream(s StreamConfig) error {
	if s.ReconnectDelay < 0 {
		return fmt.Errorf("stream.reconnect_delay must not be negative, got %s", s.ReconnectDelay)
	}
	return nil
}

func validatePoll(p PollConfig) error {
	var errs []error
	if p.Interval < 0 {
		errs = append(errs, fmt.Errorf("poll.interval must not be negative, got %s", p.Interval))
	}
	if p.LeadsLimit < 0 {
		errs = append(errs, fmt.Errorf("poll.leads_limit must not be negative, got %d", p.LeadsLimit))
	}
	if p.LogsLimit < 0 {
		errs = append(errs, fmt.Errorf("poll.logs_limit must not be negative, got %d", p.LogsLimit))
	}
	return errors.Join(errs...)
}

func validateStart(s StartConfig) error {
	if s.Count < 0 || s.Count > maxStartCount {
		return fmt.Errorf("start.count must be between 0 and %d, got %d", maxStartCount, s.Count)
	}
	return nil
}

func validateCache(c CacheConfig) error {
	if c.MessageTTL < 0 {
		return fmt.Errorf("cache.message_ttl must not be negative, got %s", c.MessageTTL)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# pipewatch configuration

# Base URL of the pipeline service
server_url: http://localhost:8000

stream:
  # Fixed wait before reopening a dropped event stream
  reconnect_delay: 3s

poll:
  # How often to poll snapshots while the event stream is down
  interval: 2s
  leads_limit: 50
  logs_limit: 100

# Pre-filled start options. Updated with the last options used.
start:
  dry_run: true
  ai_mode: false
  count: 10

cache:
  # How long generated lead messages are kept
  message_ttl: 10m

# Feature flags
# flags:
#   reset-requires-ack: false  # keep local state when the server rejects a reset
#   message-cache: true        # cache per-lead messages

# Distributed tracing (disabled by default)
# tracing:
#   enabled: true
#   exporter: file             # none, file, stdout, otlp
#   file_path: ~/.config/pipewatch/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
