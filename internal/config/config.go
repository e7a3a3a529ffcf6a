package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

// DefaultConfigFile is the configuration file name looked up when none is given.
const DefaultConfigFile = "requireconcat.yaml"

// Config represents the application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Extract ExtractConfig `yaml:"extract"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SourceConfig locates the module tree.
type SourceConfig struct {
	Root string `yaml:"root"`
}

// OutputConfig selects the bundle destination. An empty path streams to stdout.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// ExtractConfig controls lexical dependency discovery.
type ExtractConfig struct {
	CallToken string `yaml:"call_token"`
}

// WatchConfig controls the incremental rebuild loop.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// HistoryConfig enables the sqlite build history store.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig enables publishing build outcomes to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// PollInterval returns the parsed watch interval. Call after Validate.
func (w WatchConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(w.Interval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// Load reads configuration from path. A missing file is not an error when
// optional is true: defaults are returned instead.
func Load(path string, optional bool) (*Config, error) {
	loadEnvFiles()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").
				Fatal().
				WithContext("path", path).
				Build()
		}
	case os.IsNotExist(err) && optional:
	case os.IsNotExist(err):
		return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
			WithContext("path", path).
			Build()
	default:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration").
			Fatal().
			WithContext("path", path).
			Build()
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
