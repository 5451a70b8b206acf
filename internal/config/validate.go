package config

import (
	"fmt"

	"murmur/internal/services"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Recorder.Command == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "recorder.command is required", nil)
	}
	if c.Transcriber.Command == "" {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "transcriber.command is required", nil)
	}
	if c.Recorder.MaxRestarts < 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("recorder.max_restarts must be >= 0, got %d", c.Recorder.MaxRestarts), nil)
	}
	if c.Recorder.RestartBaseDelayMS <= 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("recorder.restart_base_delay_ms must be positive, got %d", c.Recorder.RestartBaseDelayMS), nil)
	}
	if c.Recorder.ReadyTimeoutSeconds <= 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("recorder.ready_timeout_seconds must be positive, got %d", c.Recorder.ReadyTimeoutSeconds), nil)
	}
	if c.Recorder.HealthIntervalSeconds < 0 || c.Recorder.HealthTimeoutSeconds < 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "recorder health settings must not be negative", nil)
	}
	if c.Transcriber.TitleMaxLength <= 0 {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("transcriber.title_max_length must be positive, got %d", c.Transcriber.TitleMaxLength), nil)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format), nil)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("unknown logging.level %q", c.Logging.Level), nil)
	}
	return nil
}
