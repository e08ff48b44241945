package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// initConfigHome points getConfigDir at a temp directory. Overriding HOME
// is not enough on Windows, where os.UserHomeDir reads USERPROFILE.
func initConfigHome(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestInitConfigWritesAnnotatedYAML(t *testing.T) {
	initConfigHome(t)

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading generated config: %v", err)
	}

	for _, want := range []string{
		"# FileMill Configuration File",
		"server:",
		"database:",
		"objectstore:",
		"broker:",
		"auth:",
		"dispatch:",
		"worker:",
		"logging:",
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("generated config lacks %q", want)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("generated config does not parse as YAML: %v", err)
	}
}

func TestInitConfigRefusesToClobber(t *testing.T) {
	initConfigHome(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("first InitConfig: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second InitConfig: expected already-exists error, got %v", err)
	}

	// force overwrites and leaves a non-empty file behind
	path, err := InitConfig(true)
	if err != nil {
		t.Fatalf("forced InitConfig: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after force: %v", err)
	}
	if info.Size() == 0 {
		t.Error("forced rewrite produced an empty file")
	}
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "filemill.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath: %v", err)
	}
	// Parent directories come into existence on demand.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("generated file: %v", err)
	}

	err := InitConfigToPath(path, false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("rewrite without force: expected already-exists error, got %v", err)
	}
}

func TestGeneratedConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading generated config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("log level = %q, expected INFO", cfg.Logging.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, expected 8080", cfg.Server.Port)
	}
	if cfg.Broker.Port != 5672 {
		t.Errorf("broker port = %d, expected 5672", cfg.Broker.Port)
	}
}

func TestGeneratedSigningSecrets(t *testing.T) {
	tmp := t.TempDir()

	load := func(name string) *Config {
		t.Helper()
		path := filepath.Join(tmp, name)
		if err := InitConfigToPath(path, false); err != nil {
			t.Fatalf("InitConfigToPath(%s): %v", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		return cfg
	}

	first := load("one.yaml")
	second := load("two.yaml")

	if n := len(first.Auth.SecretKey); n < 32 {
		t.Errorf("signing secret is %d chars, expected at least 32", n)
	}
	if first.Auth.SecretKey == second.Auth.SecretKey {
		t.Error("two generated configs share a signing secret")
	}
}
