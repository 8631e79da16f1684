package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Migration(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Migration.IdleMigrationPeriod != 30*time.Second {
		t.Errorf("Expected default idle migration period 30s, got %v", cfg.Migration.IdleMigrationPeriod)
	}
	if cfg.Migration.MaxTimeOnNonDefaultNetwork != 128*time.Second {
		t.Errorf("Expected default max time on non-default network 128s, got %v", cfg.Migration.MaxTimeOnNonDefaultNetwork)
	}
	if cfg.Migration.MaxMigrationsToNonDefaultNetworkOnWriteError != 5 {
		t.Errorf("Expected default write-error migration cap 5, got %d", cfg.Migration.MaxMigrationsToNonDefaultNetworkOnWriteError)
	}
	if cfg.Migration.MaxPortMigrationsPerSession != 4 {
		t.Errorf("Expected default port migration cap 4, got %d", cfg.Migration.MaxPortMigrationsPerSession)
	}
}

func TestApplyDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{
		Migration: MigrationConfig{
			IdleMigrationPeriod: 5 * time.Second,
		},
	}
	ApplyDefaults(cfg)

	if cfg.Migration.IdleMigrationPeriod != 5*time.Second {
		t.Errorf("Expected explicit idle migration period to survive ApplyDefaults, got %v", cfg.Migration.IdleMigrationPeriod)
	}
	// Unset fields still get defaulted.
	if cfg.Migration.MaxTimeOnNonDefaultNetwork != 128*time.Second {
		t.Errorf("Expected default max time on non-default network 128s, got %v", cfg.Migration.MaxTimeOnNonDefaultNetwork)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Metrics.MaxDatagramSize != 1452 {
		t.Errorf("Expected default max datagram size 1452, got %d", cfg.Metrics.MaxDatagramSize)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default telemetry endpoint 'localhost:4317', got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
}
