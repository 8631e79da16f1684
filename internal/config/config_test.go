package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "DEBUG"

migration:
  migrate_session_early: true
  migrate_session_on_network_change: true
  idle_migration_period: 10s

metrics:
  port: 9100
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if !cfg.Migration.MigrateSessionEarly {
		t.Error("Expected migrate_session_early to be true")
	}
	if cfg.Migration.IdleMigrationPeriod != 10*time.Second {
		t.Errorf("Expected idle migration period 10s, got %v", cfg.Migration.IdleMigrationPeriod)
	}
	if cfg.Migration.MaxTimeOnNonDefaultNetwork != 128*time.Second {
		t.Errorf("Expected default max time on non-default network 128s, got %v", cfg.Migration.MaxTimeOnNonDefaultNetwork)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected metrics port 9100, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Migration.MaxTimeOnNonDefaultNetwork != 128*time.Second {
		t.Errorf("Expected default max time on non-default network 128s, got %v", cfg.Migration.MaxTimeOnNonDefaultNetwork)
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
migration:
  migrate_session_early: true
  migrate_session_on_network_change: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected Load to reject migrate_session_early without migrate_session_on_network_change")
	}
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Migration.MigrateIdleSession = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if !loaded.Migration.MigrateIdleSession {
		t.Error("Expected migrate_idle_session to round-trip as true")
	}
}

func TestGetDefaultConfigPath_UsesXDGConfigHome(t *testing.T) {
	old := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", old)

	os.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	path := GetDefaultConfigPath()
	if path != filepath.Join("/tmp/xdg-test", "quicmigrate", "config.yaml") {
		t.Errorf("Expected XDG-based config path, got %q", path)
	}
}
