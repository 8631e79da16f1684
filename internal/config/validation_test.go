package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_MigrateEarlyRequiresNetworkChangeEnable(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Migration.MigrateSessionEarly = true
	cfg.Migration.MigrateSessionOnNetworkChange = false

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when migrate_session_early is set without migrate_session_on_network_change")
	}
	if !strings.Contains(err.Error(), "migrate_session_on_network_change") {
		t.Errorf("Expected error to mention migrate_session_on_network_change, got: %v", err)
	}
}

func TestValidate_MigrateEarlyWithNetworkChangeEnabledIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Migration.MigrateSessionEarly = true
	cfg.Migration.MigrateSessionOnNetworkChange = true

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_ZeroIdleMigrationPeriodRejected(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Migration.IdleMigrationPeriod = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero idle migration period")
	}
}
