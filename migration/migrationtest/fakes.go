// Package migrationtest provides in-memory fakes for driving
// migration.Manager deterministically in tests: no real sockets, no
// wall-clock sleeps.
package migrationtest

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/marmos91/quicmigrate/migration"
)

// FakeWriter is a scriptable migration.Writer.
type FakeWriter struct {
	Blocked   bool
	NextErr   error
	// AlwaysErr, if set, is returned by every WritePacket call (unlike
	// NextErr, which is consumed after one call) — use it to simulate a
	// writer that never recovers within the retry budget.
	AlwaysErr error
	Written   [][]byte
	ClosedRef bool
}

func (w *FakeWriter) WritePacket(b []byte) error {
	if w.AlwaysErr != nil {
		return w.AlwaysErr
	}
	if w.NextErr != nil {
		err := w.NextErr
		w.NextErr = nil
		return err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	w.Written = append(w.Written, cp)
	return nil
}

func (w *FakeWriter) IsWriteBlocked() bool { return w.Blocked }
func (w *FakeWriter) Close() error         { w.ClosedRef = true; return nil }

// FakeAddr is a trivial net.Addr.
type FakeAddr string

func (a FakeAddr) Network() string { return "fake" }
func (a FakeAddr) String() string  { return string(a) }

// FakeConnection is a scriptable migration.Connection. Its writer is a
// *migration.ForceBlockableWriter wrapping W, matching the production
// invariant that a connection always hands the manager an
// already-wrapped writer so ForceWriteBlocked/SetInner are available.
type FakeConnection struct {
	W                  *FakeWriter
	FBW                *migration.ForceBlockableWriter
	Peer               net.Addr
	Degrading          bool
	HandshakeConfirmed bool
	Closed             bool
	CloseReason        migration.CloseReason
	CloseDetail        string
	ValidationCalls    []ValidationCall
	MigrateCalls       int
	ValidationCancelled int
}

// ValidationCall records one ValidatePath invocation so tests can
// assert on the tagged delegate dispatched for it.
type ValidationCall struct {
	Ctx      *migration.PathContext
	Delegate migration.PathValidationDelegate
	Reason   migration.Cause
}

func NewFakeConnection(peer net.Addr) *FakeConnection {
	w := &FakeWriter{}
	return &FakeConnection{W: w, FBW: migration.NewForceBlockableWriter(w), Peer: peer, HandshakeConfirmed: true}
}

func (c *FakeConnection) Writer() migration.Writer { return c.FBW }
func (c *FakeConnection) PeerAddress() net.Addr    { return c.Peer }

// MigratePathWriter swaps in ctx.Writer as the fake connection's active
// inner writer, mimicking what a real MigratePath/MigrateToNewPath
// implementation does to the connection's writer.
func (c *FakeConnection) MigratePathWriter(w migration.Writer) {
	c.FBW.SetInner(w)
}

func (c *FakeConnection) ValidatePath(ctx *migration.PathContext, delegate migration.PathValidationDelegate, reason migration.Cause) error {
	c.ValidationCalls = append(c.ValidationCalls, ValidationCall{Ctx: ctx, Delegate: delegate, Reason: reason})
	return nil
}

func (c *FakeConnection) GetPathValidationContext() *migration.PathContext {
	if len(c.ValidationCalls) == 0 {
		return nil
	}
	return c.ValidationCalls[len(c.ValidationCalls)-1].Ctx
}

func (c *FakeConnection) CancelPathValidation() { c.ValidationCancelled++ }

func (c *FakeConnection) MigratePath(self, peer net.Addr, w migration.Writer, ownsWriter bool) bool {
	c.MigrateCalls++
	return true
}

func (c *FakeConnection) IsPathDegrading() bool      { return c.Degrading }
func (c *FakeConnection) IsHandshakeConfirmed() bool { return c.HandshakeConfirmed }

func (c *FakeConnection) CloseConnection(reason migration.CloseReason, detail string) {
	c.Closed = true
	c.CloseReason = reason
	c.CloseDetail = detail
}

// FakeSession is a scriptable migration.Session.
type FakeSession struct {
	ActiveStreams     bool
	SinceLastClose    time.Duration
	Alternates        map[migration.NetworkHandle]migration.NetworkHandle
	Proxied           bool
	Draining          bool
	NoNewNetworkCalls int
	MigrateToNewPathResult bool
	MigrateToNewPathCalls  []*migration.PathContext
	ClosedCause       migration.Cause
	ClosedReason      migration.CloseReason
	// OnMigrate, if set, runs on a successful MigrateToNewPath, e.g. to
	// swap the fake connection's active writer the way a real session
	// would.
	OnMigrate func(ctx *migration.PathContext)
}

func NewFakeSession() *FakeSession {
	return &FakeSession{
		Alternates:             map[migration.NetworkHandle]migration.NetworkHandle{},
		MigrateToNewPathResult: true,
	}
}

func (s *FakeSession) HasActiveRequestStreams() bool        { return s.ActiveStreams }
func (s *FakeSession) TimeSinceLastStreamClose() time.Duration { return s.SinceLastClose }

func (s *FakeSession) FindAlternateNetwork(current migration.NetworkHandle) migration.NetworkHandle {
	if alt, ok := s.Alternates[current]; ok {
		return alt
	}
	return migration.Invalid
}

func (s *FakeSession) ResetNonMigratableStreams()     {}
func (s *FakeSession) OnNoNewNetworkForMigration()     { s.NoNewNetworkCalls++ }
func (s *FakeSession) StartDraining()                  { s.Draining = true }
func (s *FakeSession) PrepareForProbingOnPath(ctx *migration.PathContext) {}

func (s *FakeSession) OnConnectionToBeClosedDueToMigrationError(cause migration.Cause, reason migration.CloseReason) {
	s.ClosedCause = cause
	s.ClosedReason = reason
}

func (s *FakeSession) MigrateToNewPath(ctx *migration.PathContext) bool {
	s.MigrateToNewPathCalls = append(s.MigrateToNewPathCalls, ctx)
	if s.MigrateToNewPathResult && s.OnMigrate != nil {
		s.OnMigrate(ctx)
	}
	return s.MigrateToNewPathResult
}

func (s *FakeSession) IsSessionProxied() bool { return s.Proxied }

// FakeFactory hands back a scripted terminal result for the next
// CreatePathContext call, synchronously, so tests don't race a real
// goroutine.
type FakeFactory struct {
	NextCtx *migration.PathContext
	NextErr string
	Calls   []FakeFactoryCall

	// DefaultWriter backs any synthesized PathContext whose test doesn't
	// script NextCtx explicitly, so a harness's single FakeWriter stays
	// reachable through every migration the manager commits.
	DefaultWriter migration.Writer
}

type FakeFactoryCall struct {
	Network migration.NetworkHandle
	Peer    net.Addr
}

func (f *FakeFactory) CreatePathContext(ctx context.Context, network migration.NetworkHandle, peer net.Addr, delegate migration.PathContextResultDelegate) {
	f.Calls = append(f.Calls, FakeFactoryCall{Network: network, Peer: peer})
	if f.NextErr != "" {
		err := f.NextErr
		f.NextErr = ""
		delegate.OnCreationFailed(network, err)
		return
	}
	ctxResult := f.NextCtx
	if ctxResult == nil {
		w := f.DefaultWriter
		if w == nil {
			w = &FakeWriter{}
		}
		ctxResult = &migration.PathContext{Network: network, PeerAddr: peer, Writer: w}
	}
	f.NextCtx = nil
	delegate.OnCreationSucceeded(ctxResult)
}

// FakeScheduler runs posted tasks and alarms against a manually
// advanced virtual clock instead of real time, so migrate-back and
// wait-for-network timeouts are exercised deterministically.
type FakeScheduler struct {
	now    time.Duration
	alarms []*fakeAlarm
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

func (s *FakeScheduler) PostTask(fn func()) {
	fn()
}

func (s *FakeScheduler) PostDelayedTask(d time.Duration, fn func()) {
	a := &fakeAlarm{sched: s, fn: fn, fireAt: s.now + d, armed: true, oneShotAutoDisarm: true}
	s.alarms = append(s.alarms, a)
}

func (s *FakeScheduler) CreateAlarm(fn func()) migration.Alarm {
	a := &fakeAlarm{sched: s, fn: fn}
	s.alarms = append(s.alarms, a)
	return a
}

// Advance moves the virtual clock forward by d, firing every alarm
// whose deadline falls at or before the new time, in deadline order.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.now += d
	for {
		due := s.dueAlarms()
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].fireAt < due[j].fireAt })
		a := due[0]
		a.armed = false
		if a.oneShotAutoDisarm {
			s.removeAlarm(a)
		}
		a.fn()
	}
}

func (s *FakeScheduler) dueAlarms() []*fakeAlarm {
	var due []*fakeAlarm
	for _, a := range s.alarms {
		if a.armed && a.fireAt <= s.now {
			due = append(due, a)
		}
	}
	return due
}

func (s *FakeScheduler) removeAlarm(target *fakeAlarm) {
	out := s.alarms[:0]
	for _, a := range s.alarms {
		if a != target {
			out = append(out, a)
		}
	}
	s.alarms = out
}

// Now returns the scheduler's current virtual time, for assertions.
func (s *FakeScheduler) Now() time.Duration { return s.now }

type fakeAlarm struct {
	sched             *FakeScheduler
	fn                func()
	fireAt            time.Duration
	armed             bool
	oneShotAutoDisarm bool
}

func (a *fakeAlarm) Set(d time.Duration) {
	a.fireAt = a.sched.now + d
	a.armed = true
}

func (a *fakeAlarm) Cancel() {
	a.armed = false
}

// NopTelemetry is a migration.Telemetry that records nothing; use it
// where a test doesn't care about metrics.
type NopTelemetry struct{}

func (NopTelemetry) ObserveMigrationDuration(migration.Cause, migration.Status, time.Duration) {}
func (NopTelemetry) ObserveTerminalStatus(migration.Status)                                   {}
func (NopTelemetry) ObserveProbeResult(migration.ProbingResult)                                {}
func (NopTelemetry) ObserveWriterRetryExhausted()                                              {}
func (NopTelemetry) ObserveBufferReallocation(string)                                          {}

// RecordingDebugVisitor records every event delivered to it.
type RecordingDebugVisitor struct {
	Events []migration.DebugEvent
}

func (v *RecordingDebugVisitor) OnMigrationEvent(event migration.DebugEvent) {
	v.Events = append(v.Events, event)
}
