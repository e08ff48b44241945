package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileHeader is prepended to generated configuration files.
const configFileHeader = `# FileMill Configuration File
#
# Environment variables override file values: FILEMILL_SECTION_KEY, e.g.
# FILEMILL_LOGGING_LEVEL=DEBUG. The legacy names DATABASE_URL,
# MINIO_ENDPOINT, RABBITMQ_HOST, SECRET_KEY, GEMINI_API_KEY (and friends)
# are honored without the prefix.

`

// InitConfig creates a starter configuration file at the default location.
// Returns the path of the created file.
//
// The generated file carries a fresh random signing secret so that a
// freshly initialized instance can mint tokens without further setup.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a starter configuration file at an explicit path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	cfg := GetDefaultConfig()

	secret, err := generateSecret()
	if err != nil {
		return fmt.Errorf("failed to generate signing secret: %w", err)
	}
	cfg.Auth.SecretKey = secret

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	content := append([]byte(configFileHeader), data...)

	// 0600: the file holds the signing secret and object store credentials.
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateSecret returns a 64-character hex string from 32 random bytes.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
