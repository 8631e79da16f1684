package config

import "time"

// GetDefaultConfig returns a fully-populated Config using the engine's
// documented defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with the engine's defaults.
// Already-set fields (e.g. from a partially-specified config file) are
// left untouched.
func ApplyDefaults(cfg *Config) {
	applyMigrationDefaults(&cfg.Migration)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyMigrationDefaults(cfg *MigrationConfig) {
	if cfg.IdleMigrationPeriod == 0 {
		cfg.IdleMigrationPeriod = 30 * time.Second
	}
	if cfg.MaxTimeOnNonDefaultNetwork == 0 {
		cfg.MaxTimeOnNonDefaultNetwork = 128 * time.Second
	}
	if cfg.MaxMigrationsToNonDefaultNetworkOnWriteError == 0 {
		cfg.MaxMigrationsToNonDefaultNetworkOnWriteError = 5
	}
	if cfg.MaxMigrationsToNonDefaultNetworkOnPathDegrading == 0 {
		cfg.MaxMigrationsToNonDefaultNetworkOnPathDegrading = 5
	}
	if cfg.MaxPortMigrationsPerSession == 0 {
		cfg.MaxPortMigrationsPerSession = 4
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.MaxDatagramSize == 0 {
		cfg.MaxDatagramSize = 1452 // typical QUIC datagram payload over Ethernet/IPv4
	}
}
