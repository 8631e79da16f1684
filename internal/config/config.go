// Package config loads the migration engine's static configuration: the
// manager-wide policy knobs in MigrationConfig, plus the ambient logging
// and telemetry settings that accompany it in every deployment of this
// codebase.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/quicmigrate/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a quicmigrate-driven process:
// the manager's migration policy, plus logging, telemetry, and metrics.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (QUICMIGRATE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Migration controls the manager's connection-migration policy.
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MigrationConfig is the manager's read-only-after-construction policy,
// as defined by the engine's data model.
type MigrationConfig struct {
	// MigrateSessionEarly enables probing and migrating on path degrading,
	// ahead of an outright disconnect.
	MigrateSessionEarly bool `mapstructure:"migrate_session_early" yaml:"migrate_session_early"`

	// AllowPortMigration lets a path-degrading response try a new local
	// port on the same network. It takes effect only while
	// MigrateSessionEarly is false; no network change follows it.
	AllowPortMigration bool `mapstructure:"allow_port_migration" yaml:"allow_port_migration"`

	// MigrateIdleSession allows migrating sessions with no open request
	// streams, subject to IdleMigrationPeriod.
	MigrateIdleSession bool `mapstructure:"migrate_idle_session" yaml:"migrate_idle_session"`

	// IdleMigrationPeriod is the maximum idle age at which a session is
	// still eligible for migration.
	IdleMigrationPeriod time.Duration `mapstructure:"idle_migration_period" validate:"gt=0" yaml:"idle_migration_period"`

	// MaxTimeOnNonDefaultNetwork bounds how long the manager keeps
	// retrying the migrate-back-to-default loop before giving up.
	MaxTimeOnNonDefaultNetwork time.Duration `mapstructure:"max_time_on_non_default_network" validate:"gt=0" yaml:"max_time_on_non_default_network"`

	// MaxMigrationsToNonDefaultNetworkOnWriteError caps write-error-driven
	// migrations away from the default network per default-network epoch.
	MaxMigrationsToNonDefaultNetworkOnWriteError int `mapstructure:"max_migrations_to_non_default_network_on_write_error" validate:"gte=0" yaml:"max_migrations_to_non_default_network_on_write_error"`

	// MaxMigrationsToNonDefaultNetworkOnPathDegrading caps path-degrading
	// driven migrations away from the default network per epoch.
	MaxMigrationsToNonDefaultNetworkOnPathDegrading int `mapstructure:"max_migrations_to_non_default_network_on_path_degrading" validate:"gte=0" yaml:"max_migrations_to_non_default_network_on_path_degrading"`

	// MaxPortMigrationsPerSession caps same-network port migrations for
	// the lifetime of a session.
	MaxPortMigrationsPerSession int `mapstructure:"max_port_migrations_per_session" validate:"gte=0" yaml:"max_port_migrations_per_session"`

	// MigrateSessionOnNetworkChange is the master enable for migrating in
	// response to platform network-change notifications. If false,
	// MigrateSessionEarly must also be false.
	MigrateSessionOnNetworkChange bool `mapstructure:"migrate_session_on_network_change" yaml:"migrate_session_on_network_change"`

	// IgnoreDisconnectSignalDuringProbing suppresses a disconnect
	// notification for the current network while the migration cause is
	// ON_NETWORK_MADE_DEFAULT.
	IgnoreDisconnectSignalDuringProbing bool `mapstructure:"ignore_disconnect_signal_during_probing" yaml:"ignore_disconnect_signal_during_probing"`

	// DisableBlackholeDetectionOnImmediateMigrate is carried into
	// migration.Config, but the manager does not read it: blackhole
	// detection is not stopped by MigrateNetworkImmediately.
	DisableBlackholeDetectionOnImmediateMigrate bool `mapstructure:"disable_blackhole_detection_on_immediate_migrate" yaml:"disable_blackhole_detection_on_immediate_migrate"`

	// AllowServerPreferredAddress enables migrating to a server-advertised
	// preferred address once available.
	AllowServerPreferredAddress bool `mapstructure:"allow_server_preferred_address" yaml:"allow_server_preferred_address"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures the Prometheus metrics and status HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server run.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics and /status endpoints.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// MaxDatagramSize is a packet buffer capacity hint, expressed as a
	// human-readable byte size ("1452B", "1.5Ki"). /status does not
	// report it.
	MaxDatagramSize bytesize.ByteSize `mapstructure:"max_datagram_size" yaml:"max_datagram_size,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (QUICMIGRATE_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys present in a configuration
// file that was found; when no file is found, Load returns the defaults
// and environment variables are not consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// QUICMIGRATE_MIGRATION_MIGRATE_SESSION_EARLY=true etc.
	v.SetEnvPrefix("QUICMIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quicmigrate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "quicmigrate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
