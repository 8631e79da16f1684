package migration

import (
	"context"
	"time"
)

// HandleWriteError satisfies WriteDelegate. It decides whether err
// should be converted into "blocked, data buffered" by starting a
// write-error migration, or propagated to the connection unchanged.
func (m *Manager) HandleWriteError(err error, lastPacket *Packet) writerRetryResult {
	if !m.maybeStartMigrateSessionOnWriteError(err) {
		return writerRetryPropagate
	}
	lastPacket.Retain()
	return writerRetryHandled
}

// OnWriteError satisfies WriteDelegate for the non-migrating path.
func (m *Manager) OnWriteError(err error) {
	m.mostRecentWriteError = err
	m.mostRecentWriteErrorAt = time.Now()
}

// OnWriteUnblocked satisfies WriteDelegate.
func (m *Manager) OnWriteUnblocked() {}

// maybeStartMigrateSessionOnWriteError checks whether a write error is
// eligible to trigger a migration, and schedules the deferred migration
// for the next event-loop tick on success.
func (m *Manager) maybeStartMigrateSessionOnWriteError(err error) bool {
	if m.session.IsSessionProxied() {
		return false
	}
	if err == ErrMsgTooBig {
		return false
	}
	if !m.cfg.MigrateSessionOnNetworkChange {
		return false
	}
	if !m.conn.IsHandshakeConfirmed() {
		return false
	}
	if m.factory == nil {
		return false
	}

	m.mostRecentWriteError = err
	m.mostRecentWriteErrorAt = time.Now()
	m.pendingMigrateOnWriteError = true

	erroredWriter := m.writer()
	m.postPendingCallback(func() {
		m.startMigrateSessionOnWriteError(erroredWriter)
	})
	return true
}

// startMigrateSessionOnWriteError is the deferred half of the
// write-error migration, run on the next logical-thread tick.
func (m *Manager) startMigrateSessionOnWriteError(erroredWriter *ForceBlockableWriter) {
	m.pendingMigrateOnWriteError = false

	if m.writer() != erroredWriter {
		return
	}
	if m.pendingMigrateImmediately {
		return
	}

	m.setCause(CauseOnWriteError)

	if ok, status := m.idleSessionCheck(); !ok {
		m.logTerminal(status, "idle session policy refused write-error migration")
		m.closeConnectionNoNotify(m.cause, closeReasonForIdle(status, true), "write error on idle session")
		return
	}
	if m.migrationDisabled {
		m.logTerminal(StatusOnWriteErrorDisabled, "migration disabled by peer config")
		m.closeConnection(m.cause, CloseDisabledByConfig, "write-error migration disabled")
		return
	}

	if m.currentNetwork == m.defaultNetwork && m.migrationsToNonDefaultOnWriteError >= m.cfg.MaxMigrationsToNonDefaultNetworkOnWriteError {
		m.logTerminal(StatusTooManyChanges, "write-error migration cap reached")
		m.closeConnection(m.cause, ClosePacketWriteError, "write-error migration cap reached")
		return
	}

	alt := m.session.FindAlternateNetwork(m.currentNetwork)
	if alt == Invalid {
		m.onNoNewNetwork()
		return
	}

	m.migrationsToNonDefaultOnWriteError++
	m.migrationAttempted = true
	token := m.newProbeToken(alt, m.conn.PeerAddress())
	m.createPathContext(context.Background(), alt, m.conn.PeerAddress(), &writeErrorMigrationDelegate{m: m, token: token})
}

type writeErrorMigrationDelegate struct {
	m     *Manager
	token *probeToken
}

func (d *writeErrorMigrationDelegate) OnCreationSucceeded(ctx *PathContext) {
	m := d.m
	if m.inFlightProbe == nil || m.inFlightProbe.id != d.token.id {
		ctx.Close()
		return
	}
	m.inFlightProbe = nil
	m.finishMigrate(ctx, true)
}

func (d *writeErrorMigrationDelegate) OnCreationFailed(network NetworkHandle, errMsg string) {
	m := d.m
	if m.inFlightProbe != nil && m.inFlightProbe.id == d.token.id {
		m.inFlightProbe = nil
	}
	m.logTerminal(StatusInternalError, "write-error migration path context creation failed: "+errMsg)
	m.closeConnection(m.cause, ClosePacketWriteError, errMsg)
}
