package migration

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newMigrateBackBackoff builds the 1 s-doubling sequence the migrate-
// back loop retries on.
func newMigrateBackBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = migrateBackInitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64) // no 60 s library cap on doubling
	b.MaxElapsedTime = 0
	b.Reset() // start from InitialInterval, not the library default
	return b
}

// startMigrateBackLoop arms the migrate-back-to-default timer with its
// initial 1 s delay. Called once, right after a migration lands the
// session on a non-default network.
func (m *Manager) startMigrateBackLoop() {
	m.retryMigrateBackCount = 0
	m.migrateBackBackoff = newMigrateBackBackoff()
	first := m.migrateBackBackoff.NextBackOff()
	m.migrateBackTimer.Set(first)
}

// onMigrateBackFired is the migrate_back_to_default_timer's callback.
func (m *Manager) onMigrateBackFired() {
	if m.pendingMigrateOnWriteError || m.pendingMigrateImmediately {
		m.migrateBackTimer.Set(0)
		return
	}
	if m.currentNetwork == m.defaultNetwork {
		m.migrateBackTimer.Cancel()
		m.retryMigrateBackCount = 0
		m.migrateBackBackoff = nil
		return
	}

	if m.migrateBackBackoff == nil {
		m.migrateBackBackoff = newMigrateBackBackoff()
	}
	m.retryMigrateBackCount++
	delay := m.migrateBackBackoff.NextBackOff()
	if delay == backoff.Stop || delay > m.cfg.MaxTimeOnNonDefaultNetwork {
		m.session.StartDraining()
		m.migrateBackBackoff = nil
		return
	}

	m.setCause(CauseOnMigrateBackToDefaultNetwork)
	m.probeAndMigrate(m.defaultNetwork, m.conn.PeerAddress(), 0)
	m.migrateBackTimer.Set(delay)
}
