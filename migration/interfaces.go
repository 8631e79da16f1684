package migration

import (
	"context"
	"net"
	"time"
)

// Writer is the minimal transport the manager migrates between paths.
// A concrete writer wraps a connected datagram socket.
type Writer interface {
	// WritePacket attempts to send b. It returns ErrWouldBlock on
	// transient no-buffer-space conditions, which the caller retries.
	WritePacket(b []byte) error
	// IsWriteBlocked reports the writer's own, non-forced blocked state.
	IsWriteBlocked() bool
	// Close releases the underlying socket.
	Close() error
}

// PathContext is an owned, single-use bundle of a connected socket and
// the writer/reader bound to it. It is released into the connection on
// a successful migration, or dropped on abandon.
type PathContext struct {
	SelfAddr net.Addr
	PeerAddr net.Addr
	Network  NetworkHandle
	Writer   Writer
	Closed   bool
}

// Close releases the path context's socket. Safe to call more than once.
func (p *PathContext) Close() error {
	if p.Closed {
		return nil
	}
	p.Closed = true
	if p.Writer != nil {
		return p.Writer.Close()
	}
	return nil
}

// PathContextResultDelegate receives the terminal outcome of an
// asynchronous path context creation request.
type PathContextResultDelegate interface {
	OnCreationSucceeded(ctx *PathContext)
	OnCreationFailed(network NetworkHandle, errMsg string)
}

// PathContextFactory asynchronously builds a PathContext bound to
// network and connected to peer. Creation is asynchronous: the terminal
// outcome is delivered to delegate, which the manager hands in per
// request; the factory does not need to support cancellation, since on
// teardown the manager simply drops the delegate.
type PathContextFactory interface {
	CreatePathContext(ctx context.Context, network NetworkHandle, peer net.Addr, delegate PathContextResultDelegate)
}

// PathValidationDelegate is notified of the outcome of a PATH_CHALLENGE
// validation the manager started via Connection.ValidatePath. It carries
// a Kind tag rather than being one of three delegate subclasses, per the
// single-delegate-with-a-tag redesign.
type PathValidationDelegate struct {
	Kind ValidationKind
	Ctx  *PathContext
}

// ValidationKind distinguishes which manager entry point a validation
// result should be dispatched to.
type ValidationKind int

const (
	ValidationConnectionMigration ValidationKind = iota
	ValidationPortMigration
	ValidationServerPreferredAddress
)

// Connection is the subset of the QUIC connection the manager consumes.
type Connection interface {
	Writer() Writer
	PeerAddress() net.Addr
	ValidatePath(ctx *PathContext, delegate PathValidationDelegate, reason Cause) error
	GetPathValidationContext() *PathContext
	CancelPathValidation()
	MigratePath(self, peer net.Addr, w Writer, ownsWriter bool) bool
	IsPathDegrading() bool
	IsHandshakeConfirmed() bool
	CloseConnection(reason CloseReason, detail string)
}

// Session is the subset of the owning QUIC session the manager consumes.
// The manager holds a non-owning reference to the session; the session
// owns the manager.
type Session interface {
	HasActiveRequestStreams() bool
	TimeSinceLastStreamClose() time.Duration
	FindAlternateNetwork(current NetworkHandle) NetworkHandle
	ResetNonMigratableStreams()
	OnNoNewNetworkForMigration()
	StartDraining()
	PrepareForProbingOnPath(ctx *PathContext)
	OnConnectionToBeClosedDueToMigrationError(cause Cause, reason CloseReason)
	MigrateToNewPath(ctx *PathContext) bool
	IsSessionProxied() bool
}

// Scheduler models the engine's single logical thread: posted tasks and
// alarms all run serialized on it. The production implementation is the
// session's own task runner; tests use migrationtest.FakeScheduler with a
// virtual clock.
type Scheduler interface {
	// PostTask runs fn on the next tick of the logical thread.
	PostTask(fn func())
	// PostDelayedTask runs fn after d on the logical thread.
	PostDelayedTask(d time.Duration, fn func())
	// CreateAlarm returns an Alarm bound to fn; fn runs on the logical
	// thread when the alarm fires.
	CreateAlarm(fn func()) Alarm
}

// Alarm is a cancellable, re-armable one-shot timer, matching the
// lease/grace-period timer shape used elsewhere in this codebase.
type Alarm interface {
	// Set arms the alarm to fire after d, cancelling any previous arming.
	Set(d time.Duration)
	// Cancel disarms the alarm. Safe to call when not armed.
	Cancel()
}

// Telemetry records migration-manager metrics. A nil Telemetry value
// (see migration/telemetryprom's nil-when-disabled constructor) means no
// metrics are recorded; the manager must treat every call as optional.
type Telemetry interface {
	ObserveMigrationDuration(cause Cause, status Status, d time.Duration)
	ObserveTerminalStatus(status Status)
	ObserveProbeResult(result ProbingResult)
	ObserveWriterRetryExhausted()
	ObserveBufferReallocation(reason string)
}

// DebugVisitor is a single-method, fire-and-forget notification sink for
// every significant manager decision. Its presence or absence must never
// affect control flow.
type DebugVisitor interface {
	OnMigrationEvent(event DebugEvent)
}

// DebugEvent is the payload delivered to DebugVisitor.OnMigrationEvent.
type DebugEvent struct {
	Cause      Cause
	Status     Status
	Network    NetworkHandle
	Reason     string
	RetryCount int
	Timestamp  time.Time
}
