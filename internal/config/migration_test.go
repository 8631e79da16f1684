package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToMigrationConfigCarriesEveryField(t *testing.T) {
	mc := MigrationConfig{
		MigrateSessionEarly:                             true,
		AllowPortMigration:                               true,
		MigrateIdleSession:                               true,
		IdleMigrationPeriod:                              45 * time.Second,
		MaxTimeOnNonDefaultNetwork:                       200 * time.Second,
		MaxMigrationsToNonDefaultNetworkOnWriteError:      7,
		MaxMigrationsToNonDefaultNetworkOnPathDegrading:   9,
		MaxPortMigrationsPerSession:                       3,
		MigrateSessionOnNetworkChange:                    true,
		IgnoreDisconnectSignalDuringProbing:              true,
		DisableBlackholeDetectionOnImmediateMigrate:      true,
		AllowServerPreferredAddress:                      true,
	}

	out := mc.ToMigrationConfig()

	assert.Equal(t, mc.MigrateSessionEarly, out.MigrateSessionEarly)
	assert.Equal(t, mc.AllowPortMigration, out.AllowPortMigration)
	assert.Equal(t, mc.MigrateIdleSession, out.MigrateIdleSession)
	assert.Equal(t, mc.IdleMigrationPeriod, out.IdleMigrationPeriod)
	assert.Equal(t, mc.MaxTimeOnNonDefaultNetwork, out.MaxTimeOnNonDefaultNetwork)
	assert.Equal(t, mc.MaxMigrationsToNonDefaultNetworkOnWriteError, out.MaxMigrationsToNonDefaultNetworkOnWriteError)
	assert.Equal(t, mc.MaxMigrationsToNonDefaultNetworkOnPathDegrading, out.MaxMigrationsToNonDefaultNetworkOnPathDegrading)
	assert.Equal(t, mc.MaxPortMigrationsPerSession, out.MaxPortMigrationsPerSession)
	assert.Equal(t, mc.MigrateSessionOnNetworkChange, out.MigrateSessionOnNetworkChange)
	assert.Equal(t, mc.IgnoreDisconnectSignalDuringProbing, out.IgnoreDisconnectSignalDuringProbing)
	assert.Equal(t, mc.DisableBlackholeDetectionOnImmediateMigrate, out.DisableBlackholeDetectionOnImmediateMigrate)
	assert.Equal(t, mc.AllowServerPreferredAddress, out.AllowServerPreferredAddress)
}
