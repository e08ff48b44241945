package config

import (
	"strings"
	"time"

	"github.com/filemill/filemill/internal/bytesize"
	"github.com/filemill/filemill/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyObjectStoreDefaults(&cfg.ObjectStore)
	applyBrokerDefaults(&cfg.Broker)
	applyAuthDefaults(&cfg.Auth)
	applyDispatchDefaults(&cfg.Dispatch)
	applyWorkerDefaults(&cfg.Worker)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyProfilingDefaults(&cfg.Profiling)
}

// applyServerDefaults sets API server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyDatabaseDefaults sets state store defaults.
func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

// applyObjectStoreDefaults sets object store defaults matching a local
// MinIO started from the bundled compose file.
func applyObjectStoreDefaults(cfg *ObjectStoreConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:9000"
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = "minioadmin"
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "minioadmin"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	// MinIO and most S3-compatible gateways require path-style addressing;
	// AWS itself wants virtual-host style. The default follows the endpoint.
	if !strings.Contains(cfg.Endpoint, "amazonaws.com") {
		cfg.ForcePathStyle = true
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = time.Hour
	}
}

// applyBrokerDefaults sets RabbitMQ defaults.
func applyBrokerDefaults(cfg *BrokerConfig) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5672
	}
	if cfg.User == "" {
		cfg.User = "guest"
	}
	if cfg.Password == "" {
		cfg.Password = "guest"
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 600 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 300 * time.Second
	}
	if cfg.Prefetch == 0 {
		cfg.Prefetch = 1
	}
}

// applyAuthDefaults sets token lifetime defaults.
// SecretKey has no default, it must be configured or generated by init.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.AccessTokenExpireMinutes == 0 {
		cfg.AccessTokenExpireMinutes = 30
	}
	if cfg.RefreshTokenExpireHours == 0 {
		cfg.RefreshTokenExpireHours = 168
	}
}

// applyDispatchDefaults sets upload and reaper defaults.
func applyDispatchDefaults(cfg *DispatchConfig) {
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 100 * bytesize.MB
	}
	// Reaper is opt-in.
	if cfg.Reaper.Interval == 0 {
		cfg.Reaper.Interval = time.Minute
	}
	if cfg.Reaper.RequeueAfter == 0 {
		cfg.Reaper.RequeueAfter = 10 * time.Minute
	}
}

// applyWorkerDefaults sets fleet consumer defaults.
func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.Timeouts.Image == 0 {
		cfg.Timeouts.Image = 60 * time.Second
	}
	if cfg.Timeouts.Video == 0 {
		cfg.Timeouts.Video = 600 * time.Second
	}
	if cfg.Timeouts.Security == 0 {
		cfg.Timeouts.Security = 120 * time.Second
	}
	if cfg.Timeouts.AI == 0 {
		cfg.Timeouts.AI = 30 * time.Second
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.ClamdAddress == "" {
		cfg.ClamdAddress = "tcp://localhost:3310"
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Gemini.Endpoint == "" {
		cfg.Gemini.Endpoint = "https://generativelanguage.googleapis.com"
	}
	// Fleet and TempDir have no defaults: fleet comes from --fleet, an
	// empty TempDir means the system temp directory.
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetricsDefaults sets metrics defaults. Metrics default on; the
// implementation is cheap and /metrics is unauthenticated read-only.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9464"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	if cfg.ServiceName == "" {
		cfg.ServiceName = "filemill"
	}

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)

	// Default server is localhost:4040 (standard Pyroscope port)
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
		Broker: BrokerConfig{
			DLX: DLXConfig{Enabled: true},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
