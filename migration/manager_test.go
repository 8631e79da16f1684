package migration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/quicmigrate/migration"
	"github.com/marmos91/quicmigrate/migration/migrationtest"
)

func baseConfig() migration.Config {
	return migration.Config{
		MigrateSessionOnNetworkChange:                   true,
		MigrateSessionEarly:                             true,
		AllowPortMigration:                               false,
		MigrateIdleSession:                               false,
		IdleMigrationPeriod:                              30 * time.Second,
		MaxTimeOnNonDefaultNetwork:                       128 * time.Second,
		MaxMigrationsToNonDefaultNetworkOnWriteError:      5,
		MaxMigrationsToNonDefaultNetworkOnPathDegrading:   5,
		MaxPortMigrationsPerSession:                       4,
	}
}

type harness struct {
	t     *testing.T
	m     *migration.Manager
	conn  *migrationtest.FakeConnection
	sess  *migrationtest.FakeSession
	fact  *migrationtest.FakeFactory
	sched *migrationtest.FakeScheduler
	debug *migrationtest.RecordingDebugVisitor
}

// advanceThroughWriterRetries drives sched through the packet writer's
// entire ENOBUFS backoff chain (12 attempts, doubling from 1ms), so a
// write error that survives every retry reaches the delegate's
// HandleWriteError synchronously with the final call.
func advanceThroughWriterRetries(sched *migrationtest.FakeScheduler) {
	for i := 0; i < 12; i++ {
		sched.Advance(3 * time.Second)
	}
}

func newHarness(t *testing.T, cfg migration.Config) *harness {
	t.Helper()
	conn := migrationtest.NewFakeConnection(migrationtest.FakeAddr("peer:443"))
	sess := migrationtest.NewFakeSession()
	fact := &migrationtest.FakeFactory{DefaultWriter: conn.W}
	sched := migrationtest.NewFakeScheduler()
	debug := &migrationtest.RecordingDebugVisitor{}

	sess.OnMigrate = func(ctx *migration.PathContext) {
		conn.MigratePathWriter(ctx.Writer)
	}

	m := migration.NewManager(cfg, conn, sess, fact, sched, migrationtest.NopTelemetry{}, debug)
	return &harness{t: t, m: m, conn: conn, sess: sess, fact: fact, sched: sched, debug: debug}
}

// succeedInFlightProbe drives the most recent ValidatePath call to
// success, as the real connection would once PATH_CHALLENGE resolves.
func (h *harness) succeedInFlightProbe() {
	require.NotEmpty(h.t, h.conn.ValidationCalls)
	call := h.conn.ValidationCalls[len(h.conn.ValidationCalls)-1]
	h.m.DispatchValidationResult(call.Delegate)
}

// S1: graceful network change.
func TestGracefulNetworkChange(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)

	const networkA migration.NetworkHandle = 1
	const networkB migration.NetworkHandle = 2

	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()
	require.Equal(t, networkA, h.m.CurrentNetwork())

	h.m.OnNetworkMadeDefault(networkB)
	require.Len(t, h.conn.ValidationCalls, 2)
	h.succeedInFlightProbe()

	assert.Equal(t, networkB, h.m.CurrentNetwork())
	assert.Equal(t, networkB, h.m.DefaultNetwork())
	assert.False(t, h.m.IsMigrateBackRunning())
}

// S2: write error -> wait -> new network.
func TestWriteErrorThenWaitThenNewNetwork(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = true

	const networkA migration.NetworkHandle = 1
	const networkC migration.NetworkHandle = 3

	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()
	require.Equal(t, networkA, h.m.CurrentNetwork())

	pw := migration.NewPacketWriter(h.conn.FBW, h.m, migrationtest.NopTelemetry{}, h.sched, 1452)
	h.conn.W.AlwaysErr = migration.ErrWouldBlock
	writeErr := pw.Write([]byte("hello"))
	require.NoError(t, writeErr, "a handled write error must present as blocked, not propagate")
	advanceThroughWriterRetries(h.sched)
	h.conn.W.AlwaysErr = nil
	h.sched.Advance(0) // runs the deferred StartMigrateSessionOnWriteError

	// no alternate network yet: expect wait_for_new_network.
	assert.True(t, h.m.IsWaitingForNewNetwork())
	assert.True(t, h.conn.FBW.IsWriteBlocked())

	h.m.OnNetworkConnected(networkC)
	require.NotEmpty(t, h.fact.Calls)
	h.fact.NextCtx = nil
	// the factory is a synchronous fake; OnNetworkConnected's immediate
	// migration already resolved by the time we get here.
	assert.Equal(t, networkC, h.m.CurrentNetwork())
	assert.True(t, h.m.IsMigrateBackRunning())
}

// S3: wait timeout.
func TestWaitTimeout(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = true

	const networkA migration.NetworkHandle = 1
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	pw := migration.NewPacketWriter(h.conn.FBW, h.m, migrationtest.NopTelemetry{}, h.sched, 1452)
	h.conn.W.AlwaysErr = migration.ErrWouldBlock
	_ = pw.Write([]byte("hello"))
	advanceThroughWriterRetries(h.sched)
	h.conn.W.AlwaysErr = nil
	h.sched.Advance(0) // runs the deferred StartMigrateSessionOnWriteError
	require.True(t, h.m.IsWaitingForNewNetwork())

	h.sched.Advance(10 * time.Second)

	assert.False(t, h.m.IsWaitingForNewNetwork())
	assert.True(t, h.conn.Closed)
	assert.Equal(t, migration.CloseNoNewNetwork, h.conn.CloseReason)
	assert.Equal(t, "Migration for cause OnWriteError timed out", h.conn.CloseDetail)
}

// S4: path degrading with port migration enabled, capped.
func TestPathDegradingPortMigrationCap(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowPortMigration = true
	cfg.MigrateSessionEarly = false
	cfg.MaxPortMigrationsPerSession = 4
	h := newHarness(t, cfg)

	const networkA migration.NetworkHandle = 1
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	for i := 0; i < cfg.MaxPortMigrationsPerSession; i++ {
		h.m.OnPathDegrading()
		h.succeedInFlightProbe()
	}
	assert.Equal(t, cfg.MaxPortMigrationsPerSession, h.m.PortMigrationCount())

	before := len(h.conn.ValidationCalls)
	h.m.OnPathDegrading()
	assert.Len(t, h.conn.ValidationCalls, before, "no new probe once the cap is reached")
}

// S5: idle session refusal.
func TestIdleSessionRefusal(t *testing.T) {
	cfg := baseConfig()
	cfg.MigrateIdleSession = false
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = false

	const networkA migration.NetworkHandle = 1
	const networkB migration.NetworkHandle = 2
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	// an alternate network exists, so OnNetworkDisconnected routes into
	// MigrateNetworkImmediately, whose idle-session policy then refuses.
	h.sess.Alternates[networkA] = networkB

	h.m.OnNetworkDisconnected(networkA)

	assert.True(t, h.conn.Closed)
	assert.Equal(t, migration.CloseNoMigratableStreams, h.conn.CloseReason)
}

// S5b: a peer-disabled migration must still fall through OnNetworkDisconnected
// into MigrateNetworkImmediately, which then closes with DISABLED_BY_CONFIG,
// rather than the disconnect handler no-op'ing on migrationDisabled itself.
func TestNetworkDisconnectedWithMigrationDisabled(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = true

	const networkA migration.NetworkHandle = 1
	const networkB migration.NetworkHandle = 2
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	h.sess.Alternates[networkA] = networkB
	h.m.SetMigrationDisabled(true)

	h.m.OnNetworkDisconnected(networkA)

	assert.True(t, h.conn.Closed)
	assert.Equal(t, migration.CloseDisabledByConfig, h.conn.CloseReason)
}

// S5c: a write-error-triggered idle refusal always closes with
// PACKET_WRITE_ERROR and, unlike the non-write-error idle refusal above,
// never routes through the session's migration-error callback.
func TestWriteErrorIdleSessionRefusal(t *testing.T) {
	cfg := baseConfig()
	cfg.MigrateIdleSession = false
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = false

	const networkA migration.NetworkHandle = 1
	const networkB migration.NetworkHandle = 2
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()
	h.sess.Alternates[networkA] = networkB

	pw := migration.NewPacketWriter(h.conn.FBW, h.m, migrationtest.NopTelemetry{}, h.sched, 1452)
	h.conn.W.AlwaysErr = migration.ErrWouldBlock
	_ = pw.Write([]byte("x"))
	advanceThroughWriterRetries(h.sched)
	h.conn.W.AlwaysErr = nil
	h.sched.Advance(0) // runs the deferred StartMigrateSessionOnWriteError

	assert.True(t, h.conn.Closed)
	assert.Equal(t, migration.ClosePacketWriteError, h.conn.CloseReason)
	assert.Empty(t, h.sess.ClosedReason, "write-error idle refusal must not notify the session")
}

// S6: migrate-back backoff gives up once the delay exceeds the cap.
func TestMigrateBackBackoffGivesUp(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxTimeOnNonDefaultNetwork = 5 * time.Second
	h := newHarness(t, cfg)
	h.sess.ActiveStreams = true

	const networkA migration.NetworkHandle = 1
	const networkB migration.NetworkHandle = 2

	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	// force off default via a write-error migration landing on B.
	h.sess.Alternates[networkA] = networkB
	pw := migration.NewPacketWriter(h.conn.FBW, h.m, migrationtest.NopTelemetry{}, h.sched, 1452)
	h.conn.W.AlwaysErr = migration.ErrWouldBlock
	_ = pw.Write([]byte("x"))
	advanceThroughWriterRetries(h.sched)
	h.conn.W.AlwaysErr = nil
	h.sched.Advance(0) // runs the deferred StartMigrateSessionOnWriteError
	require.True(t, h.m.IsMigrateBackRunning())
	require.Equal(t, networkB, h.m.CurrentNetwork())

	// the timer re-arms at 1, 2, 4, ... s; advance in those increments
	// until the loop gives up once the computed delay exceeds the cap.
	for i := 0; i < 10 && h.m.IsMigrateBackRunning(); i++ {
		h.sched.Advance(time.Duration(1<<uint(i)) * time.Second)
	}

	assert.False(t, h.m.IsMigrateBackRunning())
	assert.True(t, h.sess.Draining)
}

// Boundary: duplicate probe for the same (network, peer) is refused.
func TestDuplicateProbeRefused(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)

	var results []migration.ProbingResult
	cb := func(r migration.ProbingResult) { results = append(results, r) }

	h.m.StartProbing(cb, 7, h.conn.PeerAddress())
	h.m.StartProbing(cb, 7, h.conn.PeerAddress())

	require.Len(t, results, 2)
	assert.Equal(t, migration.ProbingPending, results[0])
	assert.Equal(t, migration.ProbingDisabledByConfig, results[1])
}

// Boundary: migrating to the current network is a no-op.
func TestMigrateToCurrentNetworkIsNoop(t *testing.T) {
	cfg := baseConfig()
	h := newHarness(t, cfg)

	const networkA migration.NetworkHandle = 1
	h.sess.ActiveStreams = true // idle check runs before the no-op check
	h.m.OnNetworkMadeDefault(networkA)
	h.succeedInFlightProbe()

	calls := len(h.sess.MigrateToNewPathCalls)
	h.m.MigrateNetworkImmediately(networkA)
	assert.Len(t, h.sess.MigrateToNewPathCalls, calls)
	assert.False(t, h.conn.Closed)
}
