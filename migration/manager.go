package migration

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/marmos91/quicmigrate/internal/logger"
)

// Manager is the client-side connection-migration engine for one QUIC
// session. All of its state is owned exclusively by the manager on a
// single logical thread (the session's task runner); every public
// method is expected to be called from that thread.
type Manager struct {
	cfg     Config
	conn    Connection
	session Session
	factory PathContextFactory
	sched   Scheduler
	telem   Telemetry
	debug   DebugVisitor

	defaultNetwork    NetworkHandle
	currentNetwork    NetworkHandle
	cause             Cause
	migrationDisabled bool
	waitForNewNetwork bool

	pendingMigrateImmediately  bool
	pendingMigrateOnWriteError bool

	retryMigrateBackCount int

	migrationsToNonDefaultOnWriteError        int
	migrationsToNonDefaultOnPathDegrading     int
	migrationsToDifferentPortOnPathDegrading  int

	mostRecentPathDegrading       time.Time
	mostRecentNetworkDisconnected time.Time
	mostRecentWriteErrorAt        time.Time
	mostRecentWriteError          error

	migrationAttempted  bool
	migrationSuccessful bool

	migrateBackTimer         Alarm
	waitForMigrationAlarm    Alarm
	runPendingCallbacksAlarm Alarm
	pendingCallbacks         []func()

	// inFlightProbe tracks the (network, peer) pair currently being
	// validated, identified by an opaque uuid rather than by pointer, so
	// a stale result from a superseded or cancelled probe is recognized
	// and discarded instead of acted on.
	inFlightProbe *probeToken

	migrateBackBackoff *backoff.ExponentialBackOff

	streamQueue streamQueue
}

// probeToken identifies one in-flight probe request.
type probeToken struct {
	id      string
	network NetworkHandle
	peer    net.Addr
	ctx     *PathContext
}

// NewManager constructs a Manager bound to conn and session. factory
// and sched are required; telem and debug may be nil.
func NewManager(cfg Config, conn Connection, session Session, factory PathContextFactory, sched Scheduler, telem Telemetry, debug DebugVisitor) *Manager {
	m := &Manager{
		cfg:     cfg,
		conn:    conn,
		session: session,
		factory: factory,
		sched:   sched,
		telem:   telem,
		debug:   debug,
		cause:   CauseUnknown,
	}
	m.migrateBackTimer = sched.CreateAlarm(m.onMigrateBackFired)
	m.waitForMigrationAlarm = sched.CreateAlarm(m.onWaitForMigrationTimeout)
	m.runPendingCallbacksAlarm = sched.CreateAlarm(m.runPendingCallbacks)
	return m
}

// Close cancels every alarm the manager owns. Called from the session's
// destructor.
func (m *Manager) Close() {
	m.migrateBackTimer.Cancel()
	m.waitForMigrationAlarm.Cancel()
	m.runPendingCallbacksAlarm.Cancel()
	if m.inFlightProbe != nil && m.inFlightProbe.ctx != nil {
		m.inFlightProbe.ctx.Close()
	}
	m.inFlightProbe = nil
}

func (m *Manager) writer() *ForceBlockableWriter {
	w, _ := m.conn.Writer().(*ForceBlockableWriter)
	return w
}

func (m *Manager) setCause(c Cause) {
	m.cause = c
}

// logTerminal records a migration attempt's terminal outcome to
// telemetry and the debug visitor, then resets current_migration_cause
// to UNKNOWN as the data model requires.
func (m *Manager) logTerminal(status Status, reason string) {
	d := time.Duration(0)
	if m.migrationAttempted && !m.mostRecentPathDegrading.IsZero() {
		d = time.Since(m.mostRecentPathDegrading)
	}
	if m.telem != nil {
		m.telem.ObserveMigrationDuration(m.cause, status, d)
		m.telem.ObserveTerminalStatus(status)
	}
	if m.debug != nil {
		m.debug.OnMigrationEvent(DebugEvent{
			Cause:      m.cause,
			Status:     status,
			Network:    m.currentNetwork,
			Reason:     reason,
			RetryCount: m.retryMigrateBackCount,
			Timestamp:  time.Now(),
		})
	}
	logger.Debug("migration terminal status",
		"cause", string(m.cause),
		"status", string(status),
		"reason", reason,
	)
	m.cause = CauseUnknown
}

func (m *Manager) closeConnection(cause Cause, reason CloseReason, detail string) {
	m.setCause(cause)
	m.conn.CloseConnection(reason, detail)
	m.session.OnConnectionToBeClosedDueToMigrationError(cause, reason)
	m.streamQueue.failAll()
}

// closeConnectionNoNotify closes the connection without notifying the
// session via OnConnectionToBeClosedDueToMigrationError. Used for the
// write-error idle-refusal path, which closes the connection directly
// rather than routing through the session's migration-error callback.
func (m *Manager) closeConnectionNoNotify(cause Cause, reason CloseReason, detail string) {
	m.setCause(cause)
	m.conn.CloseConnection(reason, detail)
	m.streamQueue.failAll()
}

// newProbeToken records a fresh in-flight probe for (network, peer)
// under a new uuid. Any previously in-flight probe is implicitly
// invalidated: its result, if it arrives later, is discarded because
// its id no longer matches m.inFlightProbe.
func (m *Manager) newProbeToken(network NetworkHandle, peer net.Addr) *probeToken {
	t := &probeToken{
		id:      uuid.NewString(),
		network: network,
		peer:    peer,
	}
	m.inFlightProbe = t
	return t
}

// probeRunningFor reports whether a probe for (network, peer) is
// already in flight, per the "no duplicate probes" invariant.
func (m *Manager) probeRunningFor(network NetworkHandle, peer net.Addr) bool {
	return m.inFlightProbe != nil && m.inFlightProbe.network == network && sameAddr(m.inFlightProbe.peer, peer)
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// postPendingCallback enqueues fn to run on the next logical-thread
// tick via run_pending_callbacks_alarm, per the write-error path's
// "next event-loop tick" requirement.
func (m *Manager) postPendingCallback(fn func()) {
	m.pendingCallbacks = append(m.pendingCallbacks, fn)
	m.runPendingCallbacksAlarm.Set(0)
}

func (m *Manager) runPendingCallbacks() {
	cbs := m.pendingCallbacks
	m.pendingCallbacks = nil
	for _, cb := range cbs {
		cb()
	}
}

func (m *Manager) createPathContext(ctx context.Context, network NetworkHandle, peer net.Addr, delegate PathContextResultDelegate) {
	m.factory.CreatePathContext(ctx, network, peer, delegate)
}

// CurrentNetwork returns the network currently carrying packets.
func (m *Manager) CurrentNetwork() NetworkHandle { return m.currentNetwork }

// DefaultNetwork returns the platform's latest reported default network.
func (m *Manager) DefaultNetwork() NetworkHandle { return m.defaultNetwork }

// IsWaitingForNewNetwork reports whether the manager is blocked waiting
// for a platform network-connected notification.
func (m *Manager) IsWaitingForNewNetwork() bool { return m.waitForNewNetwork }

// IsMigrateBackRunning reports whether the migrate-back-to-default loop
// is currently armed.
func (m *Manager) IsMigrateBackRunning() bool { return m.migrateBackBackoff != nil }

// RetryMigrateBackCount returns the migrate-back loop's current retry
// exponent.
func (m *Manager) RetryMigrateBackCount() int { return m.retryMigrateBackCount }

// PortMigrationCount returns how many port-migration probes have been
// started on path degrading this session.
func (m *Manager) PortMigrationCount() int { return m.migrationsToDifferentPortOnPathDegrading }

// SetStreamCapacityChecker wires the session's concurrent-outgoing-
// stream limiter into the manager's stream request queue. Must be
// called once before TryCreateStream is used.
func (m *Manager) SetStreamCapacityChecker(canCreate func() bool) {
	m.streamQueue.canCreate = canCreate
}

// SetMigrationDisabled records a negotiated peer-config decision to
// disable migration for the rest of the session's lifetime.
func (m *Manager) SetMigrationDisabled(disabled bool) {
	m.migrationDisabled = disabled
}

// OnNetworkSoonToDisconnect is an early-warning notification from the
// platform network notifier. It does not by itself trigger a
// migration; it exists so a future probe-ahead optimization has
// somewhere to hook in.
func (m *Manager) OnNetworkSoonToDisconnect(network NetworkHandle) {
	logger.Debug("network soon to disconnect", "network", network.String())
}
