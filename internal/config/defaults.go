package config

import "time"

const (
	DefaultSourceRoot    = "./src"
	DefaultCallToken     = "require"
	DefaultPollInterval  = time.Second
	DefaultNotifySubject = "requireconcat.builds"
)

// ApplyDefaults fills unset fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Source.Root == "" {
		cfg.Source.Root = DefaultSourceRoot
	}
	if cfg.Extract.CallToken == "" {
		cfg.Extract.CallToken = DefaultCallToken
	}
	if cfg.Watch.Interval == "" {
		cfg.Watch.Interval = DefaultPollInterval.String()
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
}
