package migration

import (
	"context"
	"fmt"
	"net"
	"time"
)

// OnNetworkConnected handles a platform network interface becoming
// available.
func (m *Manager) OnNetworkConnected(network NetworkHandle) {
	if !m.cfg.MigrateSessionOnNetworkChange && !m.conn.IsPathDegrading() {
		return
	}

	if m.conn.IsPathDegrading() && !m.waitForNewNetwork {
		m.setCause(CauseNewNetworkConnectedPostPathDegrading)
		m.probeAndMigrateOffCurrent(network)
		return
	}

	if m.waitForNewNetwork {
		m.waitForNewNetwork = false
		m.waitForMigrationAlarm.Cancel()
		if m.cause == CauseOnWriteError {
			m.migrationsToNonDefaultOnWriteError++
		}
		m.MigrateNetworkImmediately(network)
	}
}

// MigrateNetworkImmediately starts an unconditional migration to network,
// subject to the idle-session and migration-disabled checks.
func (m *Manager) MigrateNetworkImmediately(network NetworkHandle) {
	if !m.cfg.MigrateSessionOnNetworkChange {
		return
	}

	if ok, status := m.idleSessionCheck(); !ok {
		m.logTerminal(status, "idle session policy refused migration")
		m.closeConnection(m.cause, closeReasonForIdle(status, false), "idle session")
		return
	}
	if m.migrationDisabled {
		m.logTerminal(StatusDisabledByConfig, "migration disabled by peer config")
		m.closeConnection(m.cause, CloseDisabledByConfig, "migration disabled by config")
		return
	}
	if network == m.currentNetwork {
		m.logTerminal(StatusAlreadyMigrated, "already on requested network")
		return
	}

	m.cancelValidationFor(network, m.conn.PeerAddress())

	m.writer().ForceWriteBlocked(true)

	m.migrationAttempted = true
	m.pendingMigrateImmediately = true
	peer := m.conn.PeerAddress()
	token := m.newProbeToken(network, peer)

	m.createPathContext(context.Background(), network, peer, &immediateMigrationDelegate{m: m, token: token})
}

type immediateMigrationDelegate struct {
	m     *Manager
	token *probeToken
}

func (d *immediateMigrationDelegate) OnCreationSucceeded(ctx *PathContext) {
	m := d.m
	m.pendingMigrateImmediately = false
	if m.inFlightProbe == nil || m.inFlightProbe.id != d.token.id {
		ctx.Close()
		return
	}
	m.inFlightProbe = nil
	m.finishMigrate(ctx, true)
}

func (d *immediateMigrationDelegate) OnCreationFailed(network NetworkHandle, errMsg string) {
	m := d.m
	m.pendingMigrateImmediately = false
	if m.inFlightProbe != nil && m.inFlightProbe.id == d.token.id {
		m.inFlightProbe = nil
	}
	m.writer().ForceWriteBlocked(false)
	m.logTerminal(StatusInternalError, fmt.Sprintf("path context creation failed: %s", errMsg))
	m.closeConnection(m.cause, CloseNoNewNetwork, errMsg)
}

// finishMigrate commits ctx as the connection's new path. closeOnError
// controls whether a failed MigrateToNewPath closes the connection.
func (m *Manager) finishMigrate(ctx *PathContext, closeOnError bool) {
	if !m.session.MigrateToNewPath(ctx) {
		m.logTerminal(StatusNoUnusedConnectionID, "no unused connection ID available")
		ctx.Close()
		if closeOnError {
			m.closeConnection(m.cause, CloseNoNewNetwork, "no unused connection ID")
		}
		return
	}

	m.writer().ForceWriteBlocked(false)
	m.currentNetwork = ctx.Network
	m.migrationSuccessful = true
	m.logTerminal(StatusSuccess, "migration committed")

	if ctx.Network != m.defaultNetwork {
		m.startMigrateBackLoop()
	} else {
		m.migrateBackTimer.Cancel()
		m.retryMigrateBackCount = 0
		m.migrateBackBackoff = nil
	}
}

// OnNetworkDisconnected handles a platform network interface going away.
func (m *Manager) OnNetworkDisconnected(disconnected NetworkHandle) {
	if !m.cfg.MigrateSessionOnNetworkChange {
		return
	}
	m.cancelValidationFor(disconnected, nil)

	if disconnected == m.defaultNetwork {
		m.defaultNetwork = Invalid
		m.migrationsToNonDefaultOnWriteError = 0
	}
	if m.currentNetwork != disconnected {
		return
	}
	if m.pendingMigrateOnWriteError {
		return
	}
	if m.cfg.IgnoreDisconnectSignalDuringProbing && m.cause == CauseOnNetworkMadeDefault {
		return
	}

	m.mostRecentNetworkDisconnected = time.Now()
	m.setCause(CauseOnNetworkDisconnected)

	if !m.conn.IsHandshakeConfirmed() {
		m.closeConnection(m.cause, CloseHandshakeUnconfirmed, "handshake not confirmed")
		return
	}

	alt := m.session.FindAlternateNetwork(m.currentNetwork)
	if alt == Invalid {
		m.onNoNewNetwork()
		return
	}
	m.MigrateNetworkImmediately(alt)
}

// OnNetworkMadeDefault handles the platform promoting newDefault to be
// the preferred outgoing network.
func (m *Manager) OnNetworkMadeDefault(newDefault NetworkHandle) {
	previous := m.defaultNetwork
	m.defaultNetwork = newDefault
	m.setCause(CauseOnNetworkMadeDefault)
	if newDefault != previous {
		m.migrationsToNonDefaultOnWriteError = 0
		m.migrationsToNonDefaultOnPathDegrading = 0
	}

	if m.currentNetwork == newDefault {
		m.migrateBackTimer.Cancel()
		m.migrateBackBackoff = nil
		m.logTerminal(StatusAlreadyMigrated, "already on new default network")
		return
	}

	m.probeAndMigrate(newDefault, m.conn.PeerAddress(), 0)
}

// OnPathDegrading handles the connection reporting its current path is
// degrading.
func (m *Manager) OnPathDegrading() {
	m.mostRecentPathDegrading = time.Now()

	if m.session.IsSessionProxied() || m.factory == nil {
		return
	}
	if m.inFlightProbe != nil {
		return
	}
	if !m.conn.IsHandshakeConfirmed() {
		m.logTerminal(StatusPathDegradingBeforeHandshakeConfirmed, "handshake not confirmed")
		return
	}

	if m.cfg.AllowPortMigration && !m.cfg.MigrateSessionEarly {
		m.setCause(CauseChangePortOnPathDegrading)
		cap := m.cfg.MaxPortMigrationsPerSession
		if cap == 0 {
			cap = maxPortMigrationsDefault
		}
		if m.migrationsToDifferentPortOnPathDegrading >= cap {
			m.logTerminal(StatusTooManyChanges, "port migration cap reached")
			return
		}
		m.migrationsToDifferentPortOnPathDegrading++
		m.probeAndMigrate(m.currentNetwork, m.conn.PeerAddress(), 0)
		return
	}

	m.setCause(CauseChangeNetworkOnPathDegrading)
	if !m.cfg.MigrateSessionEarly {
		m.logTerminal(StatusPathDegradingNotEnabled, "migrate_session_early disabled")
		return
	}
	if m.currentNetwork == m.defaultNetwork && m.migrationsToNonDefaultOnPathDegrading >= m.cfg.MaxMigrationsToNonDefaultNetworkOnPathDegrading {
		m.logTerminal(StatusOnPathDegradingDisabled, "path-degrading migration cap reached")
		return
	}
	alt := m.session.FindAlternateNetwork(m.currentNetwork)
	if alt == Invalid {
		m.logTerminal(StatusNoAlternateNetwork, "no alternate network")
		return
	}
	if ok, status := m.idleSessionCheck(); !ok {
		m.logTerminal(status, "idle session policy refused path-degrading migration")
		return
	}
	m.migrationsToNonDefaultOnPathDegrading++
	m.probeAndMigrate(alt, m.conn.PeerAddress(), 0)
}

// onNoNewNetwork enters the wait-for-new-network state: egress is force
// blocked until either a network becomes available or the wait times out.
func (m *Manager) onNoNewNetwork() {
	m.waitForNewNetwork = true
	m.writer().ForceWriteBlocked(true)
	m.session.OnNoNewNetworkForMigration()
	m.waitForMigrationAlarm.Set(waitForMigrationTimeout)
}

func (m *Manager) onWaitForMigrationTimeout() {
	if !m.waitForNewNetwork {
		return
	}
	m.waitForNewNetwork = false
	reason := fmt.Sprintf("Migration for cause %s timed out", m.cause.Label())
	m.logTerminal(StatusTimeout, reason)
	m.closeConnection(m.cause, CloseNoNewNetwork, reason)
}

// idleSessionCheck reports whether an idle session may still migrate.
// ok=false means the caller must fail with the returned status.
func (m *Manager) idleSessionCheck() (ok bool, status Status) {
	if m.session.HasActiveRequestStreams() {
		return true, ""
	}
	if !m.cfg.MigrateIdleSession {
		return false, StatusNoMigratableStreams
	}
	if m.session.TimeSinceLastStreamClose() < m.cfg.IdleMigrationPeriod {
		return true, ""
	}
	return false, StatusIdleMigrationTimeout
}

// closeReasonForIdle maps an idle-session refusal to its close reason.
// A write-error-triggered refusal always closes with PACKET_WRITE_ERROR
// regardless of which idle check failed.
func closeReasonForIdle(status Status, hasWriteError bool) CloseReason {
	if hasWriteError {
		return ClosePacketWriteError
	}
	if status == StatusIdleMigrationTimeout {
		return CloseNetworkIdleTimeout
	}
	return CloseNoMigratableStreams
}

func (m *Manager) cancelValidationFor(network NetworkHandle, peer net.Addr) {
	if m.inFlightProbe == nil || m.inFlightProbe.network != network {
		return
	}
	if peer != nil && !sameAddr(m.inFlightProbe.peer, peer) {
		return
	}
	m.conn.CancelPathValidation()
	if m.inFlightProbe.ctx != nil {
		m.inFlightProbe.ctx.Close()
	}
	m.inFlightProbe = nil
}
