package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the migration engine.
// Use these keys consistently so every manager decision is queryable the
// same way regardless of which handler logged it.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// Migration bookkeeping
	KeyCause     = "cause"      // MigrationCause tag
	KeyStatus    = "status"     // MigrationStatus / ProbingResult tag
	KeyNetwork   = "network"    // NetworkHandle involved
	KeyProbeID   = "probe_id"   // probe / invalidation-epoch token
	KeyReason    = "reason"     // human-readable close/refusal reason
	KeyRetry     = "retry"      // retry_migrate_back_count
	KeyAttempt   = "attempt"    // writer retry attempt number
	KeyErrorCode = "error_code" // write error code

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Cause returns a slog.Attr for the current MigrationCause
func Cause(c string) slog.Attr {
	return slog.String(KeyCause, c)
}

// Status returns a slog.Attr for a MigrationStatus / ProbingResult
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Network returns a slog.Attr for a NetworkHandle
func Network(n string) slog.Attr {
	return slog.String(KeyNetwork, n)
}

// ProbeID returns a slog.Attr for a probe token
func ProbeID(id string) slog.Attr {
	return slog.String(KeyProbeID, id)
}

// Reason returns a slog.Attr for a human-readable reason string
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// Retry returns a slog.Attr for a retry counter
func Retry(n int) slog.Attr {
	return slog.Int(KeyRetry, n)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
