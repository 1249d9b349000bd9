// Package handler exposes the search service HTTP endpoints including query
// execution, cache management, and health checks.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shardmesh/searchcore/internal/analytics"
	"github.com/shardmesh/searchcore/internal/diag"
	"github.com/shardmesh/searchcore/internal/searcher/cache"
	"github.com/shardmesh/searchcore/internal/searcher/executor"
	"github.com/shardmesh/searchcore/internal/searcher/fusion"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/ranker"
	"github.com/shardmesh/searchcore/pkg/logger"
	"github.com/shardmesh/searchcore/pkg/metrics"
	"github.com/shardmesh/searchcore/pkg/middleware"
	"github.com/shardmesh/searchcore/pkg/tracing"
)

// SearchExecutor abstracts single-shard and sharded query execution.
type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

// HybridExecutor abstracts FT.HYBRID's fuse-then-process pipeline so the
// handler doesn't depend on executor.HybridExecutor's cursor-table wiring
// directly.
type HybridExecutor interface {
	Execute(ctx context.Context, plan *parser.HybridPlan, streams []fusion.Ranked) (*executor.HybridSearchResult, error)
}

// Handler serves the search service HTTP API.
type Handler struct {
	executor     SearchExecutor
	hybrid       HybridExecutor
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
	diag         *diag.Registry
}

// New creates a Handler with the given executor, cache, analytics collector,
// metrics recorder, and result-limit settings. hybrid may be nil, in which
// case Hybrid responds 503. diagRegistry may be nil, in which case no
// in-flight query tracking is recorded.
func New(exec SearchExecutor, hybrid HybridExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int, diagRegistry *diag.Registry) *Handler {
	return &Handler{
		executor:     exec,
		hybrid:       hybrid,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
		diag:         diagRegistry,
	}
}

// Search handles GET /api/v1/search?q=&limit=. It parses the query,
// optionally checks the cache, executes the plan, records metrics and
// analytics, and writes the JSON result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	requestID := middleware.GetRequestID(ctx)
	ctx, span := tracing.StartSpan(ctx, "search", requestID)
	defer func() {
		span.End()
		span.Log()
	}()

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse_query")
	plan := parser.Parse(query)
	parseSpan.SetAttr("terms", len(plan.Terms))
	parseSpan.SetAttr("exclude_terms", len(plan.ExcludeTerms))
	parseSpan.End()

	if len(plan.Terms) == 0 {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Results: []ranker.RankedDoc{},
		})
		return
	}

	if h.diag != nil {
		qh := h.diag.AddQuery("search", query)
		defer h.diag.RemoveQuery(qh)
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil {
		_, cacheSpan := tracing.StartChildSpan(ctx, "cache_lookup")
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, func() (*executor.SearchResult, error) {
			_, execSpan := tracing.StartChildSpan(ctx, "execute_query")
			defer execSpan.End()
			return h.executor.Execute(ctx, plan, limit)
		})
		cacheSpan.SetAttr("hit", cacheHit)
		cacheSpan.End()
	} else {
		_, execSpan := tracing.StartChildSpan(ctx, "execute_query")
		result, err = h.executor.Execute(ctx, plan, limit)
		execSpan.End()
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.recordSearchMetrics("error", false, 0, time.Since(start))
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	duration := time.Since(start)

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}

	h.recordSearchMetrics(resultType, cacheHit, len(result.Results), duration)

	span.SetAttr("query", query)
	span.SetAttr("total_hits", result.TotalHits)
	span.SetAttr("returned", len(result.Results))
	span.SetAttr("cache_hit", cacheHit)
	span.SetAttr("latency_ms", latencyMs)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}

		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     plan.Terms,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":     result.Query,
		"total":     result.TotalHits,
		"results":   result.Results,
		"took_ms":   float64(latencyMs),
		"cache_hit": cacheHit,
	})
}

// hybridStreamRequest is one externally-ranked sub-query stream supplied by
// the caller (e.g. a vector search performed outside this service).
type hybridStreamRequest struct {
	DocKeys []string           `json:"doc_keys"`
	Scores  map[string]float64 `json:"scores"`
}

// hybridRequest is the POST /api/v1/hybrid body: an optional lexical
// sub-query (run through the same executor Search uses), zero or more
// pre-ranked sub-query streams, and the FT.HYBRID argument tail
// (COMBINE/LIMIT/SORTBY/GROUPBY/APPLY/FILTER/...) as a token list.
type hybridRequest struct {
	Query   string                `json:"query"`
	Args    []string              `json:"args"`
	Streams []hybridStreamRequest `json:"streams"`
}

// Hybrid handles POST /api/v1/hybrid. It fuses the lexical sub-query (if
// any) with the caller-supplied streams per the COMBINE method in Args, then
// runs the fused rows through the GROUPBY/APPLY/FILTER/SORTBY/LIMIT chain
// described by the rest of Args.
func (h *Handler) Hybrid(w http.ResponseWriter, r *http.Request) {
	if h.hybrid == nil {
		h.writeError(w, http.StatusServiceUnavailable, "hybrid search is disabled")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req hybridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" && len(req.Streams) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one of 'query' or 'streams' is required")
		return
	}

	plan, err := parser.ParseHybridArgs(req.Args, int64(h.maxResults))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid hybrid arguments: %v", err))
		return
	}

	if h.diag != nil {
		qh := h.diag.AddQuery("hybrid", req.Query)
		defer h.diag.RemoveQuery(qh)
	}

	var streams []fusion.Ranked
	if req.Query != "" {
		qplan := parser.Parse(req.Query)
		result, err := h.executor.Execute(ctx, qplan, h.maxResults)
		if err != nil {
			log.Error("hybrid lexical sub-query failed", "query", req.Query, "error", err)
			h.writeError(w, http.StatusInternalServerError, "lexical sub-query failed")
			return
		}
		streams = append(streams, lexicalStream(result.Results))
	}
	for _, s := range req.Streams {
		streams = append(streams, fusion.Ranked{DocKeys: s.DocKeys, Scores: s.Scores})
	}

	res, err := h.hybrid.Execute(ctx, plan, streams)
	if err != nil {
		log.Error("hybrid execution failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "hybrid query failed")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// lexicalStream converts the BM25-ranked results of a plain search into a
// fusion.Ranked stream, preserving their descending-score order as rank.
func lexicalStream(docs []ranker.RankedDoc) fusion.Ranked {
	keys := make([]string, len(docs))
	scores := make(map[string]float64, len(docs))
	for i, d := range docs {
		keys[i] = d.DocID
		scores[d.DocID] = d.Score
	}
	return fusion.Ranked{DocKeys: keys, Scores: scores}
}

// recordSearchMetrics updates Prometheus counters and histograms for the
// completed search.
func (h *Handler) recordSearchMetrics(resultType string, cacheHit bool, resultCount int, duration time.Duration) {
	if h.metrics == nil {
		return
	}

	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()

	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}

	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(duration.Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(resultCount))
}

// CacheStats returns current cache hit/miss counts and hit rate.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate flushes all cached search results.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// Health returns a simple health-check response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON serialises data as JSON and writes it with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError writes a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
