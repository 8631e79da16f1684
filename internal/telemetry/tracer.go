package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys stamped on migration spans and events. These follow
// OpenTelemetry's flat key.subkey convention.
const (
	AttrNetwork       = "migration.network" // NetworkHandle under discussion
	AttrPreviousNet   = "migration.previous_network"
	AttrCause         = "migration.cause"  // MigrationCause tag
	AttrStatus        = "migration.status" // MigrationStatus / ProbingResult
	AttrProbeID       = "migration.probe_id"
	AttrRetryCount    = "migration.retry_count"
	AttrWriterAttempt = "migration.writer_attempt"
	AttrErrorCode     = "migration.error_code"
	AttrDurationMs    = "migration.duration_ms"
	AttrBufferReason  = "migration.buffer_realloc_reason"
	AttrSessionID     = "migration.session_id"
)

// Span names for migration-manager operations.
const (
	SpanMigrate        = "migration.migrate"
	SpanProbe          = "migration.probe"
	SpanWaitForNetwork = "migration.wait_for_new_network"
	SpanMigrateBack    = "migration.migrate_back"
	SpanWriterRetry    = "migration.writer_retry"
)

// Network returns an attribute for a NetworkHandle.
func Network(handle string) attribute.KeyValue {
	return attribute.String(AttrNetwork, handle)
}

// PreviousNetwork returns an attribute for the network migrated away from.
func PreviousNetwork(handle string) attribute.KeyValue {
	return attribute.String(AttrPreviousNet, handle)
}

// Cause returns an attribute for a MigrationCause.
func Cause(cause string) attribute.KeyValue {
	return attribute.String(AttrCause, cause)
}

// Status returns an attribute for a MigrationStatus or ProbingResult.
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// ProbeID returns an attribute for a probe/invalidation-epoch token.
func ProbeID(id string) attribute.KeyValue {
	return attribute.String(AttrProbeID, id)
}

// RetryCount returns an attribute for the migrate-back retry counter.
func RetryCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRetryCount, n)
}

// WriterAttempt returns an attribute for a writer retry attempt number.
func WriterAttempt(n int) attribute.KeyValue {
	return attribute.Int(AttrWriterAttempt, n)
}

// ErrorCode returns an attribute for a write error code.
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// BufferReallocReason returns an attribute for why the writer's packet
// buffer was reallocated (e.g. "mtu_increase", "handed_off").
func BufferReallocReason(reason string) attribute.KeyValue {
	return attribute.String(AttrBufferReason, reason)
}

// SessionID returns an attribute identifying the owning session.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// StartMigrationSpan starts a span for a migration attempt, tagging it
// with the cause and destination network up front.
func StartMigrationSpan(ctx context.Context, cause, network string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Cause(cause), Network(network)}, attrs...)
	return StartSpan(ctx, SpanMigrate, trace.WithAttributes(allAttrs...))
}

// StartProbeSpan starts a span for a PATH_CHALLENGE probing attempt.
func StartProbeSpan(ctx context.Context, network, probeID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Network(network), ProbeID(probeID)}, attrs...)
	return StartSpan(ctx, SpanProbe, trace.WithAttributes(allAttrs...))
}

// StartWriterRetrySpan starts a span covering the ENOBUFS backoff retry loop.
func StartWriterRetrySpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanWriterRetry, trace.WithAttributes(attrs...))
}
