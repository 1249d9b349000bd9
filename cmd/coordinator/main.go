// Command coordinator runs the cluster coordinator: it owns the shard
// topology, the connection pool to every shard node, and the command router
// and multiplexer used to dispatch and fan out commands across shards. It
// exposes an HTTP API for topology inspection and ad-hoc dispatch, alongside
// health checks.
//
// Usage:
//
//	go run ./cmd/coordinator [-config configs/development.yaml] [-topology topology.txt]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shardmesh/searchcore/internal/cluster"
	clusterhandler "github.com/shardmesh/searchcore/internal/cluster/handler"
	"github.com/shardmesh/searchcore/pkg/config"
	"github.com/shardmesh/searchcore/pkg/health"
	"github.com/shardmesh/searchcore/pkg/logger"
	"github.com/shardmesh/searchcore/pkg/middleware"
)

// main loads config, bootstraps the cluster topology from a topology file,
// and starts an HTTP server exposing topology and dispatch endpoints. The
// same file backs a FileTopologyProvider so Manager's CLUSTERREFRESH ticker
// picks up operator edits to the file without a restart. Graceful shutdown
// is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	topologyPath := flag.String("topology", "", "path to a static topology text file (overrides cluster.topologyFile)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.HideUserDataFromLog)
	slog.Info("starting cluster coordinator", "port", cfg.Cluster.Port, "self_host", cfg.Cluster.SelfHost)

	topoFile := cfg.Cluster.TopologyFile
	if *topologyPath != "" {
		topoFile = *topologyPath
	}
	if topoFile == "" {
		fmt.Fprintln(os.Stderr, "no topology source configured: set cluster.topologyFile or pass -topology")
		os.Exit(1)
	}
	raw, err := os.ReadFile(topoFile)
	if err != nil {
		slog.Error("failed to read topology file", "path", topoFile, "error", err)
		os.Exit(1)
	}
	topo, err := cluster.ParseTopology(string(raw))
	if err != nil {
		slog.Error("failed to parse topology file", "path", topoFile, "error", err)
		os.Exit(1)
	}

	var tlsProvider cluster.TlsProvider
	if cfg.Cluster.TLSEnabled {
		tlsProvider = cluster.NewStaticTlsProvider(true, cfg.Cluster.TLSInsecureSkipVerify)
	}
	pool := cluster.NewConnectionPool(cfg.Cluster.ConnPerShard, cfg.Cluster.OSSGlobalPassword, tlsProvider)
	provider := cluster.NewFileTopologyProvider(topoFile)
	mgr := cluster.NewManager(pool, cfg.Cluster.SelfHost, cfg.Cluster.RefreshInterval, provider, cfg.Cluster.TopologyValidationTimeout)
	if err := mgr.Topology.UpdateTopology(topo); err != nil {
		slog.Error("initial topology rejected", "error", err)
		os.Exit(1)
	}
	mgr.Multiplex.EnsureSize(topo)
	slog.Info("topology loaded", "path", topoFile, "num_shards", len(topo.Shards), "num_slots", topo.NumSlots)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.Run(ctx)
	defer mgr.Stop()

	if started := pool.ConnectAll(); started > 0 {
		slog.Info("connecting to shard nodes", "connections", started)
	}

	checker := health.NewChecker()
	checker.Register("shard_connections", func(ctx context.Context) health.ComponentHealth {
		if pool.CheckConnections(mgr.Topology.Nodes(), true) {
			return health.ComponentHealth{Status: health.StatusUp}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "one or more masters unreachable"}
	})

	h := clusterhandler.New(mgr)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/topology", h.Topology)
	mux.HandleFunc("POST /api/v1/dispatch", h.Dispatch)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Cluster.Timeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Cluster.Port),
		Handler: chain,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("cluster coordinator listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("cluster coordinator stopped")
}
