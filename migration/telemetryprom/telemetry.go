// Package telemetryprom is the Prometheus-backed implementation of
// migration.Telemetry.
package telemetryprom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/quicmigrate/migration"
)

// Telemetry records migration-manager metrics into a Prometheus
// registry. A nil *Telemetry is a valid, fully inert migration.Telemetry:
// every method is a no-op on a nil receiver, matching the nil-when-
// disabled pattern used throughout this codebase's metrics wiring.
type Telemetry struct {
	migrationDuration    *prometheus.HistogramVec
	terminalStatusTotal  *prometheus.CounterVec
	probeResultTotal     *prometheus.CounterVec
	writerRetryExhausted prometheus.Counter
	bufferRealloc        *prometheus.CounterVec
}

// New creates a Prometheus-backed Telemetry registered against reg. If
// enabled is false it returns nil, which satisfies migration.Telemetry
// as a complete no-op — callers should pass the returned value straight
// into migration.NewManager without a nil check.
func New(enabled bool, reg prometheus.Registerer) *Telemetry {
	if !enabled {
		return nil
	}

	return &Telemetry{
		migrationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quicmigrate_migration_duration_seconds",
				Help:    "Duration from path-degrading/network-change detection to a migration's terminal status.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"cause", "status"},
		),
		terminalStatusTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quicmigrate_migration_terminal_status_total",
				Help: "Count of migration attempts by terminal status.",
			},
			[]string{"status"},
		),
		probeResultTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quicmigrate_probe_result_total",
				Help: "Count of PATH_CHALLENGE probe attempts by result.",
			},
			[]string{"result"},
		),
		writerRetryExhausted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "quicmigrate_writer_retry_exhausted_total",
				Help: "Count of packet writes that exhausted the ENOBUFS retry budget.",
			},
		),
		bufferRealloc: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quicmigrate_writer_buffer_realloc_total",
				Help: "Count of packet buffer reallocations by reason.",
			},
			[]string{"reason"},
		),
	}
}

func (t *Telemetry) ObserveMigrationDuration(cause migration.Cause, status migration.Status, d time.Duration) {
	if t == nil {
		return
	}
	t.migrationDuration.WithLabelValues(string(cause), string(status)).Observe(d.Seconds())
}

func (t *Telemetry) ObserveTerminalStatus(status migration.Status) {
	if t == nil {
		return
	}
	t.terminalStatusTotal.WithLabelValues(string(status)).Inc()
}

func (t *Telemetry) ObserveProbeResult(result migration.ProbingResult) {
	if t == nil {
		return
	}
	t.probeResultTotal.WithLabelValues(string(result)).Inc()
}

func (t *Telemetry) ObserveWriterRetryExhausted() {
	if t == nil {
		return
	}
	t.writerRetryExhausted.Inc()
}

func (t *Telemetry) ObserveBufferReallocation(reason string) {
	if t == nil {
		return
	}
	t.bufferRealloc.WithLabelValues(reason).Inc()
}
