package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/quicmigrate/internal/config"
	"github.com/marmos91/quicmigrate/internal/logger"
	"github.com/marmos91/quicmigrate/internal/telemetry"
	"github.com/marmos91/quicmigrate/migration"
	"github.com/marmos91/quicmigrate/migration/migrationtest"
	"github.com/marmos91/quicmigrate/migration/netfactory"
	"github.com/marmos91/quicmigrate/migration/realtime"
	"github.com/marmos91/quicmigrate/migration/statusserver"
	"github.com/marmos91/quicmigrate/migration/telemetryprom"
)

var (
	peerAddr    string
	networkList string
	stepEvery   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the migration engine against a scripted sequence of networks",
	Long: `run wires a migration manager to real UDP sockets dialed through
netfactory, a Prometheus+OpenTelemetry telemetry stack, and a session
simulated in memory. It then steps through --networks, calling
OnNetworkMadeDefault for each handle every --interval, so the engine's
migration decisions can be observed on /status and /metrics.

Examples:
  # Step through three platform networks every 5 seconds
  quicmigrate-demo run --peer 127.0.0.1:9999 --networks 1,2,3 --interval 5s`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&peerAddr, "peer", "127.0.0.1:9999", "UDP peer address to dial for each simulated path")
	runCmd.Flags().StringVar(&networkList, "networks", "1,2", "comma-separated network handles to step through")
	runCmd.Flags().DurationVar(&stepEvery, "interval", 5*time.Second, "time between scripted network-change steps")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "quicmigrate-demo",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	networks, err := parseNetworks(networkList)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	telem := telemetryprom.New(cfg.Metrics.Enabled, reg)

	sched := realtime.New()
	defer sched.Stop()

	conn := migrationtest.NewFakeConnection(migrationtest.FakeAddr(peerAddr))
	conn.HandshakeConfirmed = true

	sess := migrationtest.NewFakeSession()
	sess.ActiveStreams = true
	sess.OnMigrate = func(pc *migration.PathContext) { conn.MigratePathWriter(pc.Writer) }
	for i := 0; i < len(networks)-1; i++ {
		sess.Alternates[networks[i]] = networks[i+1]
	}

	factory := netfactory.New(sched, nil, 0, 0)
	debug := telemetry.NewMigrationVisitor(ctx)

	mgr := migration.NewManager(cfg.Migration.ToMigrationConfig(), conn, sess, factory, sched, telem, debug)

	var httpServer *http.Server
	if cfg.Metrics.Enabled {
		router := statusserver.NewRouter(mgr, reg)
		httpServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: router}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status server error", "error", err)
			}
		}()
		logger.Info("status server listening", "port", cfg.Metrics.Port)
	}

	done := make(chan struct{})
	go runScript(sched, mgr, networks, stepEvery, done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("quicmigrate-demo running. Press Ctrl+C to stop.", "networks", networks, "interval", stepEvery.String())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
	case <-done:
		logger.Info("scripted network sequence complete")
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", "error", err)
		}
	}

	return nil
}

// runScript steps the manager through networks on sched's logical
// thread, one PostDelayedTask per step, and closes done once the
// sequence is exhausted.
func runScript(sched migration.Scheduler, mgr *migration.Manager, networks []migration.NetworkHandle, interval time.Duration, done chan struct{}) {
	if len(networks) == 0 {
		close(done)
		return
	}

	sched.PostTask(func() {
		logger.Info("network made default", "network", networks[0].String())
		mgr.OnNetworkMadeDefault(networks[0])
	})

	for i := 1; i < len(networks); i++ {
		network := networks[i]
		delay := time.Duration(i) * interval
		sched.PostDelayedTask(delay, func() {
			logger.Info("network made default", "network", network.String())
			mgr.OnNetworkMadeDefault(network)
		})
	}

	time.AfterFunc(time.Duration(len(networks))*interval, func() { close(done) })
}

func parseNetworks(raw string) ([]migration.NetworkHandle, error) {
	parts := strings.Split(raw, ",")
	networks := make([]migration.NetworkHandle, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network handle %q: %w", p, err)
		}
		networks = append(networks, migration.NetworkHandle(n))
	}
	return networks, nil
}
