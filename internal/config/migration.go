package config

import "github.com/marmos91/quicmigrate/migration"

// ToMigrationConfig converts the tagged, file/env-facing MigrationConfig
// into the domain-pure migration.Config the manager is constructed with.
func (c MigrationConfig) ToMigrationConfig() migration.Config {
	return migration.Config{
		MigrateSessionEarly:                             c.MigrateSessionEarly,
		AllowPortMigration:                               c.AllowPortMigration,
		MigrateIdleSession:                               c.MigrateIdleSession,
		IdleMigrationPeriod:                               c.IdleMigrationPeriod,
		MaxTimeOnNonDefaultNetwork:                        c.MaxTimeOnNonDefaultNetwork,
		MaxMigrationsToNonDefaultNetworkOnWriteError:       c.MaxMigrationsToNonDefaultNetworkOnWriteError,
		MaxMigrationsToNonDefaultNetworkOnPathDegrading:    c.MaxMigrationsToNonDefaultNetworkOnPathDegrading,
		MaxPortMigrationsPerSession:                        c.MaxPortMigrationsPerSession,
		MigrateSessionOnNetworkChange:                     c.MigrateSessionOnNetworkChange,
		IgnoreDisconnectSignalDuringProbing:               c.IgnoreDisconnectSignalDuringProbing,
		DisableBlackholeDetectionOnImmediateMigrate:       c.DisableBlackholeDetectionOnImmediateMigrate,
		AllowServerPreferredAddress:                       c.AllowServerPreferredAddress,
	}
}
