package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// knownFleets are the queue consumer roles a worker process can assume.
var knownFleets = map[string]bool{
	"image":    true,
	"video":    true,
	"security": true,
	"ai":       true,
}

// Validate checks the configuration for errors.
//
// Struct tags (via go-playground/validator) cover enums and ranges; the
// checks that need cross-field context or non-zero-value semantics are done
// by hand. Validate does not normalize: ApplyDefaults runs first.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	// Database section has its own validation.
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// The signing secret is optional at load time (worker processes never
	// mint tokens) but when present it must be strong enough for HMAC.
	if cfg.Auth.SecretKey != "" && len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("auth.secret_key must be at least 32 characters, got %d", len(cfg.Auth.SecretKey))
	}

	if cfg.Worker.Fleet != "" && !knownFleets[cfg.Worker.Fleet] {
		return fmt.Errorf("worker.fleet must be one of image, video, security, ai; got %q", cfg.Worker.Fleet)
	}

	if cfg.Worker.Timeouts.Image <= 0 || cfg.Worker.Timeouts.Video <= 0 ||
		cfg.Worker.Timeouts.Security <= 0 || cfg.Worker.Timeouts.AI <= 0 {
		return fmt.Errorf("worker.timeouts must all be positive")
	}

	if cfg.Dispatch.MaxUploadSize == 0 {
		return fmt.Errorf("dispatch.max_upload_size must be positive")
	}

	if cfg.Dispatch.Reaper.Enabled {
		if cfg.Dispatch.Reaper.Interval <= 0 {
			return fmt.Errorf("dispatch.reaper.interval must be positive")
		}
		if cfg.Dispatch.Reaper.RequeueAfter <= 0 {
			return fmt.Errorf("dispatch.reaper.requeue_after must be positive")
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	if cfg.Profiling.Enabled && cfg.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	return nil
}
