// Package statusserver exposes a small chi-routed HTTP surface next to
// the migration manager: /metrics for Prometheus scraping and /status
// for a JSON snapshot of the manager's current mode, mirroring the
// codebase's pattern of an embedded debug/status endpoint alongside
// metrics rather than a separate process.
package statusserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/quicmigrate/internal/logger"
	"github.com/marmos91/quicmigrate/migration"
)

// StatusProvider is the subset of migration.Manager's exported surface
// the /status endpoint reports. Scoped to an interface so tests can
// substitute a fake without constructing a full Manager.
type StatusProvider interface {
	CurrentNetwork() migration.NetworkHandle
	DefaultNetwork() migration.NetworkHandle
	IsWaitingForNewNetwork() bool
	IsMigrateBackRunning() bool
	RetryMigrateBackCount() int
	PortMigrationCount() int
}

// statusResponse is the /status endpoint's JSON body.
type statusResponse struct {
	CurrentNetwork       string `json:"current_network"`
	DefaultNetwork       string `json:"default_network"`
	OnDefaultNetwork     bool   `json:"on_default_network"`
	WaitingForNewNetwork bool   `json:"waiting_for_new_network"`
	MigrateBackRunning   bool   `json:"migrate_back_running"`
	MigrateBackRetries   int    `json:"migrate_back_retries"`
	PortMigrations       int    `json:"port_migrations"`
}

// Compile-time check that Manager still satisfies StatusProvider.
var _ StatusProvider = (*migration.Manager)(nil)

// NewRouter builds the chi router serving /metrics and /status. reg may
// be nil, in which case /metrics serves prometheus.DefaultGatherer.
func NewRouter(mgr StatusProvider, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if reg != nil {
		gatherer = reg
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, mgr)
	})

	return r
}

func writeStatus(w http.ResponseWriter, mgr StatusProvider) {
	resp := statusResponse{
		CurrentNetwork:       mgr.CurrentNetwork().String(),
		DefaultNetwork:       mgr.DefaultNetwork().String(),
		OnDefaultNetwork:     mgr.CurrentNetwork() == mgr.DefaultNetwork(),
		WaitingForNewNetwork: mgr.IsWaitingForNewNetwork(),
		MigrateBackRunning:   mgr.IsMigrateBackRunning(),
		MigrateBackRetries:   mgr.RetryMigrateBackCount(),
		PortMigrations:       mgr.PortMigrationCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("status server request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
