// Command searcher starts the distributed search service.
//
// The searcher loads shard data from disk, connects to Redis for query caching,
// starts an analytics collector/aggregator pipeline via Kafka, and exposes an
// HTTP API for full-text search, cache management, analytics, and health checks.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shardmesh/searchcore/internal/analytics"
	"github.com/shardmesh/searchcore/internal/diag"
	"github.com/shardmesh/searchcore/internal/indexer/shard"
	"github.com/shardmesh/searchcore/internal/searcher/cache"
	"github.com/shardmesh/searchcore/internal/searcher/executor"
	"github.com/shardmesh/searchcore/internal/searcher/handler"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/pipeline"
	"github.com/shardmesh/searchcore/pkg/config"
	"github.com/shardmesh/searchcore/pkg/grpc"
	"github.com/shardmesh/searchcore/pkg/health"
	"github.com/shardmesh/searchcore/pkg/kafka"
	"github.com/shardmesh/searchcore/pkg/logger"
	"github.com/shardmesh/searchcore/pkg/metrics"
	"github.com/shardmesh/searchcore/pkg/middleware"
	"github.com/shardmesh/searchcore/pkg/proto"
	pkgredis "github.com/shardmesh/searchcore/pkg/redis"
)

// numShards is the fixed number of index shards. Each shard holds a subset of
// the indexed documents, assigned at ingestion from a SHA-256 hash of the
// document body modulo the shard count.
const numShards = 8

// main initialises all dependencies (config, logging, metrics, shard router,
// Redis cache, Kafka analytics pipeline, health checker) and starts the HTTP
// server on the configured port. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.HideUserDataFromLog)
	slog.Info("starting search service", "port", cfg.Server.Port, "num_shards", numShards)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			metricsShutdown(shutdownCtx)
		}()
		m.ActiveShards.Set(float64(numShards))
		slog.Info("prometheus metrics enabled", "port", cfg.Metrics.Port)
	}
	router, err := shard.NewRouter(cfg.Indexer, numShards)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	slog.Info("shard router initialized", "data_dir", cfg.Indexer.DataDir)

	if m != nil {
		for shardID, engine := range router.GetAllEngines() {
			m.ShardDocCount.WithLabelValues(strconv.Itoa(shardID)).Set(float64(engine.GetTotalDocs()))
		}
	}
	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cluster.NodeRPCPort > 0 {
		rpcServer := newNodeRPCServer(cfg.Cluster.OSSGlobalPassword)
		addr := fmt.Sprintf(":%d", cfg.Cluster.NodeRPCPort)
		go func() {
			var err error
			if cfg.Cluster.TLSEnabled && cfg.Cluster.TLSCertFile != "" {
				cert, certErr := tls.LoadX509KeyPair(cfg.Cluster.TLSCertFile, cfg.Cluster.TLSKeyFile)
				if certErr != nil {
					slog.Error("loading node rpc tls cert", "error", certErr)
					return
				}
				err = rpcServer.ServeTLS(addr, &tls.Config{Certificates: []tls.Certificate{cert}})
			} else {
				err = rpcServer.Serve(addr)
			}
			if err != nil {
				slog.Error("node rpc server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			rpcServer.Stop()
		}()
		slog.Info("node rpc server listening", "port", cfg.Cluster.NodeRPCPort, "tls", cfg.Cluster.TLSEnabled)
	}

	// Periodically re-scan shard directories for segments flushed by the
	// indexer process so that newly ingested documents become searchable
	// without requiring a full restart.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := router.ReloadAll(); n > 0 {
					slog.Info("hot-reloaded new segments", "count", n)
				}
			}
		}
	}()

	var collector *analytics.Collector
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector = analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, nil)
	aggregator := analytics.NewAggregator(analyticsConsumer)
	analyticsConsumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	aggregator = analytics.NewAggregator(analyticsConsumer)
	analyticsH := analytics.NewHandler(aggregator)

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started")
	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if router.NumShards() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards active", router.NumShards())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	exec := executor.NewSharded(router.GetAllEngines())

	diagRegistry := diag.NewRegistry()
	diagHandler := diag.NewHandler(diagRegistry)

	cursors := pipeline.NewCursorTable(time.Duration(parser.HybridDefaultMaxIdleMS) * time.Millisecond)
	cursors.SetObservers(
		func(cursorID uint64, chunkSize int) any { return diagRegistry.AddCursor("hybrid", cursorID, chunkSize) },
		func(token any) { diagRegistry.RemoveCursor(token.(diag.CursorHandle)) },
	)
	cursors.StartReaper(ctx, 30*time.Second)
	hybridExec := executor.NewHybrid(cursors, cfg.Search.DefaultLimit)

	h := handler.New(exec, hybridExec, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults, diagRegistry)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/hybrid", h.Hybrid)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /debug/blocked", diagHandler.Blocked)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// nodeProtocolVersion is the version this node negotiates via HELLO.
const nodeProtocolVersion = 1

// newNodeRPCServer builds the pkg/grpc server a coordinator's
// internal/cluster.Conn dials into: the AUTH/HELLO handshake pair every
// pooled connection performs before its first command. password is the
// cluster's shared OSSGlobalPassword; an empty password accepts any AUTH.
func newNodeRPCServer(password string) *grpc.Server {
	s := grpc.NewServer()
	s.Register("AUTH", func(_ context.Context, req json.RawMessage) (any, error) {
		var params struct {
			Password string `json:"password"`
		}
		if err := json.Unmarshal(req, &params); err != nil {
			return nil, fmt.Errorf("decoding AUTH params: %w", err)
		}
		if password != "" && params.Password != password {
			return nil, fmt.Errorf("invalid password")
		}
		return &proto.HealthCheckResponse{Status: "SERVING"}, nil
	})
	s.Register("HELLO", func(_ context.Context, req json.RawMessage) (any, error) {
		var params struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(req, &params); err != nil {
			return nil, fmt.Errorf("decoding HELLO params: %w", err)
		}
		if params.Version > nodeProtocolVersion {
			return nil, fmt.Errorf("unsupported protocol version %d (node supports up to %d)", params.Version, nodeProtocolVersion)
		}
		return &proto.HealthCheckResponse{Status: "SERVING"}, nil
	})
	return s
}
