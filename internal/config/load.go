package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. PIPEWATCH_SERVER_URL.
const EnvPrefix = "PIPEWATCH"

// SetDefaults registers every default on v so keys missing from the file
// still unmarshal to sensible values.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("stream.reconnect_delay", d.Stream.ReconnectDelay)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.leads_limit", d.Poll.LeadsLimit)
	v.SetDefault("poll.logs_limit", d.Poll.LogsLimit)
	v.SetDefault("start.dry_run", d.Start.DryRun)
	v.SetDefault("start.ai_mode", d.Start.AIMode)
	v.SetDefault("start.count", d.Start.Count)
	v.SetDefault("cache.message_ttl", d.Cache.MessageTTL)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// BindEnv enables PIPEWATCH_* overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Decode unmarshals and validates what v holds.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path on a fresh viper instance. Used when the
// file changes while the client runs.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Decode(v)
}
