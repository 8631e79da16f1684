package migration

import (
	"context"
	"net"
)

// probeAndMigrate implements the "probe and migrate on success" shape
// used by OnNetworkMadeDefault, OnPathDegrading, and the
// server-preferred-address path. delay is reserved for the migrate-back
// loop's exponential re-probing; immediate callers pass 0.
func (m *Manager) probeAndMigrate(network NetworkHandle, peer net.Addr, delay int) ProbingResult {
	if m.probeRunningFor(network, peer) {
		return ProbingDisabledByConfig
	}
	if m.factory == nil {
		return ProbingInternalError
	}

	m.migrationAttempted = true
	token := m.newProbeToken(network, peer)
	m.createPathContext(context.Background(), network, peer, &probeCreationDelegate{m: m, token: token})
	return ProbingPending
}

// probeAndMigrateOffCurrent re-probes off the current network after a
// path-degrading event observed post-network-change.
func (m *Manager) probeAndMigrateOffCurrent(network NetworkHandle) {
	m.probeAndMigrate(network, m.conn.PeerAddress(), 0)
}

// StartProbing begins a PATH_CHALLENGE probe to (network, peer) and
// invokes callback once with the immediate result: PENDING if a probe
// was started, or a refusal result if one was already running for the
// same pair. The eventual success or failure is delivered later via
// DispatchValidationResult / the path context factory's delegate, not
// through callback.
func (m *Manager) StartProbing(callback func(ProbingResult), network NetworkHandle, peer net.Addr) {
	callback(m.probeAndMigrate(network, peer, 0))
}

// probeCreationDelegate receives the path context factory's terminal
// result for a probe request, then hands the context to the
// connection's PATH_CHALLENGE validation, tagged by the current cause
// per the single-delegate-with-a-tag redesign.
type probeCreationDelegate struct {
	m     *Manager
	token *probeToken
}

func (d *probeCreationDelegate) OnCreationSucceeded(ctx *PathContext) {
	m := d.m
	if m.inFlightProbe == nil || m.inFlightProbe.id != d.token.id {
		ctx.Close()
		return
	}
	d.token.ctx = ctx
	m.session.PrepareForProbingOnPath(ctx)

	kind := validationKindForCause(m.cause)
	err := m.conn.ValidatePath(ctx, PathValidationDelegate{Kind: kind, Ctx: ctx}, m.cause)
	if err != nil {
		m.inFlightProbe = nil
		ctx.Close()
		m.logTerminal(StatusInternalError, "ValidatePath failed: "+err.Error())
	}
}

func (d *probeCreationDelegate) OnCreationFailed(network NetworkHandle, errMsg string) {
	m := d.m
	if m.inFlightProbe != nil && m.inFlightProbe.id == d.token.id {
		m.inFlightProbe = nil
	}
	m.logTerminal(StatusInternalError, "probe path context creation failed: "+errMsg)
}

func validationKindForCause(c Cause) ValidationKind {
	switch c {
	case CauseChangePortOnPathDegrading:
		return ValidationPortMigration
	case CauseOnServerPreferredAddressAvailable:
		return ValidationServerPreferredAddress
	default:
		return ValidationConnectionMigration
	}
}

// DispatchValidationResult is called by the connection once a
// PATH_CHALLENGE started via ValidatePath resolves successfully. It
// routes to the manager entry point matching the delegate's tag. A
// result whose context is not the in-flight probe's (superseded or
// cancelled) is stale: its context is closed and the result dropped.
func (m *Manager) DispatchValidationResult(d PathValidationDelegate) {
	if m.inFlightProbe == nil || m.inFlightProbe.ctx != d.Ctx {
		d.Ctx.Close()
		return
	}
	switch d.Kind {
	case ValidationPortMigration:
		m.onPortMigrationProbeSucceeded(d.Ctx)
	case ValidationServerPreferredAddress:
		m.onServerPreferredAddressProbeSucceeded(d.Ctx)
	default:
		m.onConnectionMigrationProbeSucceeded(d.Ctx)
	}
}

func (m *Manager) onConnectionMigrationProbeSucceeded(ctx *PathContext) {
	if m.telem != nil {
		m.telem.ObserveProbeResult(ProbingPending)
	}
	m.inFlightProbe = nil
	m.finishMigrate(ctx, false)
}

func (m *Manager) onPortMigrationProbeSucceeded(ctx *PathContext) {
	m.inFlightProbe = nil
	m.finishMigrate(ctx, false)
}

func (m *Manager) onServerPreferredAddressProbeSucceeded(ctx *PathContext) {
	m.inFlightProbe = nil
	m.finishMigrate(ctx, false)
}

// OnServerPreferredAddress handles the peer advertising a preferred
// address to migrate to.
func (m *Manager) OnServerPreferredAddress(addr net.Addr) {
	if !m.cfg.AllowServerPreferredAddress {
		return
	}
	m.setCause(CauseOnServerPreferredAddressAvailable)
	m.probeAndMigrate(m.defaultNetwork, addr, 0)
}
