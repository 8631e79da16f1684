package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds migration-scoped logging context: the fields every
// manager decision wants attached (network, cause, probe), plus the
// OpenTelemetry trace/span IDs the tracer stamped on the context.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Cause     string    // current MigrationCause (e.g. "OnWriteError")
	Network   string    // NetworkHandle under discussion
	ProbeID   string    // probe/invalidation-epoch UUID, if any
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given migration cause.
func NewLogContext(cause string) *LogContext {
	return &LogContext{
		Cause:     cause,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Cause:     lc.Cause,
		Network:   lc.Network,
		ProbeID:   lc.ProbeID,
		StartTime: lc.StartTime,
	}
}

// WithNetwork returns a copy with the network set
func (lc *LogContext) WithNetwork(network string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Network = network
	}
	return clone
}

// WithProbe returns a copy with the probe ID set
func (lc *LogContext) WithProbe(probeID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ProbeID = probeID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
