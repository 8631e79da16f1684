package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/quicmigrate/migration"
)

// MigrationVisitor implements migration.DebugVisitor by emitting an
// OTel span event for every significant manager decision, so a
// migration can be correlated with the rest of a traced request. The
// zero value is ready to use; a nil *MigrationVisitor is also safe and
// records nothing.
type MigrationVisitor struct {
	ctx context.Context
}

// NewMigrationVisitor binds a visitor to the span found in ctx (or the
// background context if none is active).
func NewMigrationVisitor(ctx context.Context) *MigrationVisitor {
	if ctx == nil {
		ctx = context.Background()
	}
	return &MigrationVisitor{ctx: ctx}
}

func (v *MigrationVisitor) OnMigrationEvent(event migration.DebugEvent) {
	if v == nil {
		return
	}
	AddEvent(v.ctx, SpanMigrate,
		Cause(string(event.Cause)),
		Status(string(event.Status)),
		Network(event.Network.String()),
		attribute.String("migration.reason", event.Reason),
		RetryCount(event.RetryCount),
	)
}
