package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/filemill/filemill/internal/bytesize"
	"github.com/filemill/filemill/pkg/store"
)

// Config represents the FileMill configuration.
//
// One tree configures every process role: the API server reads the server,
// database, objectstore, broker, auth, and dispatch sections; worker
// processes read database, objectstore, broker, and worker. Logging,
// metrics, telemetry, and profiling apply to all roles.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FILEMILL_*, plus the legacy unprefixed names)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Server configures the REST API HTTP server.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures job/file state persistence (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// ObjectStore configures the S3-compatible blob store.
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore" yaml:"objectstore"`

	// Broker configures the RabbitMQ connection shared by submitter and workers.
	Broker BrokerConfig `mapstructure:"broker" yaml:"broker"`

	// Auth configures token signing and lifetimes.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Dispatch configures upload limits and the stale-job reaper.
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`

	// Worker configures fleet consumer processes.
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ServerConfig configures the REST API HTTP server.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout caps reading an entire request including the body. It has
	// to cover a full upload at max_upload_size over a slow link.
	// Default: 10m
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ObjectStoreConfig configures the S3-compatible object store holding raw
// uploads and derived artifacts.
type ObjectStoreConfig struct {
	// Endpoint is the S3 host:port. Default: localhost:9000 (MinIO)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AccessKey and SecretKey are the static S3 credentials.
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// Secure selects https when true. Default: false
	Secure bool `mapstructure:"secure" yaml:"secure"`

	// Region is the S3 region sent with every request.
	// Default: us-east-1
	Region string `mapstructure:"region" yaml:"region"`

	// ForcePathStyle uses path-style bucket addressing, required by MinIO.
	// Default: true
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// PresignTTL is the validity window of generated download URLs.
	// Default: 1h
	PresignTTL time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl"`

	// URLRewrite rewrites presigned URLs before they are handed to clients.
	// Needed when the store's internal endpoint (e.g. a compose hostname)
	// is not reachable by browsers.
	URLRewrite URLRewriteConfig `mapstructure:"url_rewrite" yaml:"url_rewrite"`
}

// URL returns the endpoint as a full URL, with the scheme implied by
// Secure.
func (c *ObjectStoreConfig) URL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint
}

// URLRewriteConfig is a from -> to substring replacement applied once to
// each presigned URL. Empty From disables rewriting.
type URLRewriteConfig struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// BrokerConfig configures the RabbitMQ connection.
type BrokerConfig struct {
	// Host is the broker hostname. Default: localhost
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the AMQP port. Default: 5672
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// User and Password are the AMQP credentials. Default: guest/guest
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`

	// VHost is the AMQP virtual host. Default: /
	VHost string `mapstructure:"vhost" yaml:"vhost"`

	// Heartbeat is the AMQP heartbeat interval. Long-running video jobs
	// must not outlive the connection, so this is generous.
	// Default: 600s
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`

	// DialTimeout caps the initial TCP connect.
	// Default: 300s
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// Prefetch is the per-consumer unacknowledged delivery cap. 1 gives
	// one-job-at-a-time workers.
	// Default: 1
	Prefetch int `mapstructure:"prefetch" validate:"omitempty,gte=0" yaml:"prefetch"`

	// DLX routes rejected envelopes to per-queue dead-letter queues.
	DLX DLXConfig `mapstructure:"dlx" yaml:"dlx"`
}

// DLXConfig configures dead-lettering of rejected envelopes.
type DLXConfig struct {
	// Enabled declares the dead-letter exchange and per-queue dead queues.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AuthConfig configures token signing and lifetimes.
type AuthConfig struct {
	// SecretKey is the HMAC signing key for bearer tokens.
	// Must be at least 32 characters long when set.
	// Legacy override: SECRET_KEY environment variable.
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// AccessTokenExpireMinutes is the access token lifetime in minutes.
	// Default: 30
	AccessTokenExpireMinutes int `mapstructure:"access_token_expire_minutes" validate:"omitempty,gt=0" yaml:"access_token_expire_minutes"`

	// RefreshTokenExpireHours is the refresh token lifetime in hours.
	// Default: 168 (7 days)
	RefreshTokenExpireHours int `mapstructure:"refresh_token_expire_hours" validate:"omitempty,gt=0" yaml:"refresh_token_expire_hours"`
}

// AccessTokenTTL returns the access token lifetime.
func (c *AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c *AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireHours) * time.Hour
}

// DispatchConfig configures upload handling and the stale-job reaper.
type DispatchConfig struct {
	// MaxUploadSize caps a single upload body.
	// Supports human-readable formats: "100MB", "1Gi".
	// Default: 100MB
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size,omitempty"`

	// Reaper republishes envelopes of jobs stuck in QUEUED.
	Reaper ReaperConfig `mapstructure:"reaper" yaml:"reaper"`
}

// ReaperConfig configures the stale-job requeuer. A publish lost between
// the job row commit and the broker confirm leaves the job QUEUED forever;
// the reaper finds such jobs and republishes them.
type ReaperConfig struct {
	// Enabled turns the reaper on. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the scan period. Default: 1m
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// RequeueAfter is how long a job must sit QUEUED before it is
	// republished. Must exceed the longest expected queue wait.
	// Default: 10m
	RequeueAfter time.Duration `mapstructure:"requeue_after" yaml:"requeue_after"`
}

// WorkerConfig configures fleet consumer processes.
type WorkerConfig struct {
	// Fleet selects which queue this process consumes.
	// Valid values: image, video, security, ai. Usually set via --fleet.
	Fleet string `mapstructure:"fleet" yaml:"fleet,omitempty"`

	// TempDir is where workers scratch downloaded inputs and rendered
	// outputs. Empty means the system temp directory.
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir,omitempty"`

	// Timeouts are the per-action execution deadlines.
	Timeouts WorkerTimeouts `mapstructure:"timeouts" yaml:"timeouts"`

	// FFmpegPath locates the ffmpeg binary for the video fleet.
	// Default: ffmpeg (resolved via PATH)
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`

	// ClamdAddress is the clamd socket for virus scanning.
	// Format: tcp://host:port or unix:///path/to/clamd.sock
	// Default: tcp://localhost:3310
	ClamdAddress string `mapstructure:"clamd_address" yaml:"clamd_address"`

	// Gemini configures the AI tagging backend.
	Gemini GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
}

// WorkerTimeouts are per-fleet job execution deadlines. A handler that
// exceeds its deadline fails the job with a timeout message.
type WorkerTimeouts struct {
	// Image handler deadline. Default: 60s
	Image time.Duration `mapstructure:"image" yaml:"image"`

	// Video handler deadline. Transcodes are slow. Default: 600s
	Video time.Duration `mapstructure:"video" yaml:"video"`

	// Security handler deadline. Default: 120s
	Security time.Duration `mapstructure:"security" yaml:"security"`

	// AI handler deadline. Default: 30s
	AI time.Duration `mapstructure:"ai" yaml:"ai"`
}

// ByFleet returns the deadline for a fleet name, zero when unknown.
func (t *WorkerTimeouts) ByFleet(fleet string) time.Duration {
	switch fleet {
	case "image":
		return t.Image
	case "video":
		return t.Video
	case "security":
		return t.Security
	case "ai":
		return t.AI
	}
	return 0
}

// GeminiConfig configures the AI tagging backend. An empty APIKey switches
// the AI handler to deterministic fallback tags.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	// Legacy override: GEMINI_API_KEY environment variable.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Model is the Gemini model name. Default: gemini-2.0-flash
	Model string `mapstructure:"model" yaml:"model"`

	// Endpoint is the API base URL, overridable for testing.
	// Default: https://generativelanguage.googleapis.com
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures Prometheus metrics. The API server exposes
// /metrics on its own listener; worker processes expose Listen.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address of the standalone worker metrics listener.
	// Default: :9464
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName identifies this process in traces.
	// Default: filemill
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a
// Pyroscope server for flame graph visualization.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServerAddress is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	ServerAddress string `mapstructure:"server_address" yaml:"server_address"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// legacyEnvAliases maps config keys to the unprefixed environment variable
// names honored by earlier deployments. Both the FILEMILL_ prefixed name
// and the legacy name work; the prefixed name wins when both are set.
var legacyEnvAliases = []struct {
	key    string
	legacy string
}{
	{"database.url", "DATABASE_URL"},
	{"objectstore.endpoint", "MINIO_ENDPOINT"},
	{"objectstore.access_key", "MINIO_ACCESS_KEY"},
	{"objectstore.secret_key", "MINIO_SECRET_KEY"},
	{"objectstore.secure", "MINIO_SECURE"},
	{"broker.host", "RABBITMQ_HOST"},
	{"broker.port", "RABBITMQ_PORT"},
	{"broker.user", "RABBITMQ_USER"},
	{"broker.password", "RABBITMQ_PASSWORD"},
	{"auth.secret_key", "SECRET_KEY"},
	{"auth.access_token_expire_minutes", "ACCESS_TOKEN_EXPIRE_MINUTES"},
	{"worker.gemini.api_key", "GEMINI_API_KEY"},
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FILEMILL_* and legacy aliases)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists. A missing file is fine:
	// containers run on environment variables alone.
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  filemill init\n\n"+
				"Or specify a custom config file:\n"+
				"  filemill <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  filemill init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// Config files carry the signing secret and object store credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use FILEMILL_ prefix and underscores
	// Example: FILEMILL_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FILEMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults for booleans that default on. ApplyDefaults cannot express
	// these: a bool zero value is indistinguishable from an explicit false.
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("broker.dlx.enabled", true)

	// Bind the legacy unprefixed names alongside the prefixed ones.
	replacer := strings.NewReplacer(".", "_")
	for _, a := range legacyEnvAliases {
		prefixed := "FILEMILL_" + strings.ToUpper(replacer.Replace(a.key))
		_ = v.BindEnv(a.key, prefixed, a.legacy)
	}

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Default locations: $XDG_CONFIG_HOME/filemill, then /etc/filemill
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath("/etc/filemill")
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "1Gi", "500Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filemill")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "filemill")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
