package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filemill/filemill/internal/bytesize"
	"github.com/filemill/filemill/pkg/store"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/filemill.db"

server:
  port: 8080

auth:
  secret_key: "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Broker.Heartbeat != 600*time.Second {
		t.Errorf("Expected default heartbeat 600s, got %v", cfg.Broker.Heartbeat)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// Containers run on environment variables alone.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	// Verify default config is returned
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	// Verify default API port
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_DecodeHooks(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
dispatch:
  max_upload_size: "250MB"

broker:
  heartbeat: "5m"

worker:
  timeouts:
    video: "15m"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Dispatch.MaxUploadSize != 250*bytesize.MB {
		t.Errorf("Expected 250MB upload cap, got %v", cfg.Dispatch.MaxUploadSize)
	}
	if cfg.Broker.Heartbeat != 5*time.Minute {
		t.Errorf("Expected 5m heartbeat, got %v", cfg.Broker.Heartbeat)
	}
	if cfg.Worker.Timeouts.Video != 15*time.Minute {
		t.Errorf("Expected 15m video timeout, got %v", cfg.Worker.Timeouts.Video)
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[database]
type = "sqlite"

[database.sqlite]
path = "` + yamlSafePath(tmpDir) + `/filemill.db"

[auth]
secret_key = "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "filemill" {
		t.Errorf("Expected directory name 'filemill', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("FILEMILL_LOGGING_LEVEL", "ERROR")
	t.Setenv("FILEMILL_SERVER_PORT", "9090")

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

server:
  port: 8080

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/filemill.db"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.Server.Port)
	}
}

func TestLoad_LegacyEnvironmentAliases(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://filemill:secret@db:5432/filemill")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("RABBITMQ_HOST", "rabbitmq")
	t.Setenv("SECRET_KEY", "legacy-secret-key-that-is-at-least-32-chars")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "45")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")

	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config from environment: %v", err)
	}

	if cfg.Database.URL != "postgres://filemill:secret@db:5432/filemill" {
		t.Errorf("DATABASE_URL not honored, got %q", cfg.Database.URL)
	}
	if cfg.Database.Type != store.DatabaseTypePostgres {
		t.Errorf("Expected postgres from DATABASE_URL scheme, got %q", cfg.Database.Type)
	}
	if cfg.ObjectStore.Endpoint != "minio:9000" {
		t.Errorf("MINIO_ENDPOINT not honored, got %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Broker.Host != "rabbitmq" {
		t.Errorf("RABBITMQ_HOST not honored, got %q", cfg.Broker.Host)
	}
	if cfg.Auth.SecretKey != "legacy-secret-key-that-is-at-least-32-chars" {
		t.Errorf("SECRET_KEY not honored, got %q", cfg.Auth.SecretKey)
	}
	if cfg.Auth.AccessTokenExpireMinutes != 45 {
		t.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES not honored, got %d", cfg.Auth.AccessTokenExpireMinutes)
	}
	if cfg.Worker.Gemini.APIKey != "test-gemini-key" {
		t.Errorf("GEMINI_API_KEY not honored, got %q", cfg.Worker.Gemini.APIKey)
	}
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("FILEMILL_BROKER_HOST", "prefixed-host")
	t.Setenv("RABBITMQ_HOST", "legacy-host")

	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Broker.Host != "prefixed-host" {
		t.Errorf("Expected prefixed env var to win, got %q", cfg.Broker.Host)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Auth.SecretKey = "saved-secret-key-that-is-at-least-32-chars"

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %v", info.Mode().Perm())
	}

	// Round-trip
	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Auth.SecretKey != cfg.Auth.SecretKey {
		t.Error("Secret key did not survive the round-trip")
	}
	if loaded.Server.Port != cfg.Server.Port {
		t.Errorf("Port did not survive the round-trip: %d != %d", loaded.Server.Port, cfg.Server.Port)
	}
}
