package config

import (
	"fmt"
	"regexp"
	"time"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

// callTokenPattern restricts the call token to an identifier, since it is
// spliced into the extraction regular expression.
var callTokenPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// Validate checks the configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if cfg.Source.Root == "" {
		return ferrors.ConfigError("source.root is required").Build()
	}
	if !callTokenPattern.MatchString(cfg.Extract.CallToken) {
		return ferrors.ConfigError(fmt.Sprintf("extract.call_token %q is not an identifier", cfg.Extract.CallToken)).
			WithContext("call_token", cfg.Extract.CallToken).
			Build()
	}
	d, err := time.ParseDuration(cfg.Watch.Interval)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid watch.interval").
			Fatal().
			WithContext("interval", cfg.Watch.Interval).
			Build()
	}
	if d <= 0 {
		return ferrors.ConfigError("watch.interval must be > 0").
			WithContext("interval", cfg.Watch.Interval).
			Build()
	}
	return nil
}
