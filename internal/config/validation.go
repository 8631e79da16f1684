package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tag constraints on Config and the
// migrate_session_early ⇒ migrate_session_on_network_change invariant,
// which cannot be expressed as a single-field validator tag.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Migration.MigrateSessionEarly && !cfg.Migration.MigrateSessionOnNetworkChange {
		return fmt.Errorf("migration.migrate_session_early requires migration.migrate_session_on_network_change")
	}

	return nil
}
