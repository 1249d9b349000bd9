package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer"
	"github.com/shardmesh/searchcore/internal/indexer/asyncread"
	"github.com/shardmesh/searchcore/internal/indexer/index"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/ranker"
)

// titleHydrationBudget bounds how long Execute waits for disk-backed title
// reads before returning results with whatever titles completed in time.
const titleHydrationBudget = 200 * time.Millisecond

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.RankedDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

type Executor struct {
	engine *indexer.Engine
	logger *slog.Logger
}

func New(engine *indexer.Engine) *Executor {
	return &Executor{
		engine: engine,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{
			Query:   plan.RawQuery,
			Results: []ranker.RankedDoc{},
		}, nil
	}

	postingsPerTerm := make(map[string]index.PostingList)
	termStats := make(map[string]int)
	for _, term := range plan.Terms {
		postings, err := e.engine.Search(term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		if len(postings) > 0 {
			postingsPerTerm[term] = postings
			termStats[term] = len(postings)
		}
	}
	excludeDocIDs := make(map[uint32]struct{})
	for _, term := range plan.ExcludeTerms {
		postings, err := e.engine.Search(term)
		if err != nil {
			e.logger.Error("searching exclude term failed", "term", term, "error", err)
			continue
		}
		for _, p := range postings {
			excludeDocIDs[p.DocID] = struct{}{}
		}
	}
	var candidateDocIDs map[uint32]struct{}
	switch plan.Type {
	case parser.QueryAND:
		candidateDocIDs = intersectPostings(postingsPerTerm)
	case parser.QueryOR:
		candidateDocIDs = unionPostings(postingsPerTerm)
	}
	for docID := range excludeDocIDs {
		delete(candidateDocIDs, docID)
	}
	filteredPostings := make(map[string]index.PostingList)
	for term, postings := range postingsPerTerm {
		filtered := make(index.PostingList, 0)
		for _, p := range postings {
			if _, ok := candidateDocIDs[p.DocID]; ok {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			filteredPostings[term] = filtered
		}
	}
	params := ranker.RankParams{
		TotalDocs:    e.engine.GetTotalDocs(),
		AvgDocLength: e.engine.GetAvgDocLength(),
	}
	getDocInfo := func(docID uint32) ranker.DocInfo {
		return ranker.DocInfo{
			DocLength: e.engine.GetDocLengthByID(docID),
		}
	}
	ranked := ranker.Rank(filteredPostings, params, getDocInfo, limit)
	resolved := e.hydrateResults(ctx, ranked)
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", len(candidateDocIDs),
		"results", len(resolved),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(candidateDocIDs),
		Results:   resolved,
		TermStats: termStats,
	}, nil
}

// hydrateResults resolves each scored doc's external key and title. A
// document still held in the engine's in-memory (unflushed) title cache
// resolves instantly; any other document's title is fetched from its
// segment's doc-meta sidecar through an asyncread.Pool, overlapping the disk
// reads for every result in the batch instead of reading them one at a time.
func (e *Executor) hydrateResults(ctx context.Context, ranked []ranker.ScoredDoc) []ranker.RankedDoc {
	type keyedDoc struct {
		docID uint32
		key   string
		score float64
	}
	keyed := make([]keyedDoc, 0, len(ranked))
	for _, sd := range ranked {
		key, ok := e.engine.DocKey(sd.DocID)
		if !ok {
			continue
		}
		keyed = append(keyed, keyedDoc{docID: sd.DocID, key: key, score: sd.Score})
	}

	titles := make(map[uint32]string, len(keyed))
	var onDisk []uint32
	for _, kd := range keyed {
		if title, ok := e.engine.GetPendingTitle(kd.key); ok {
			titles[kd.docID] = title
			continue
		}
		onDisk = append(onDisk, kd.docID)
	}
	if len(onDisk) > 0 {
		e.hydrateTitlesFromDisk(ctx, onDisk, titles)
	}

	out := make([]ranker.RankedDoc, 0, len(keyed))
	for _, kd := range keyed {
		out = append(out, ranker.RankedDoc{DocID: kd.key, Score: kd.score, Title: titles[kd.docID]})
	}
	return out
}

// hydrateTitlesFromDisk drives an asyncread.Pool over the engine's title
// reader, submitting every doc-id up front so the worker pool's reads
// overlap, and gives up on whatever is still outstanding once
// titleHydrationBudget elapses.
func (e *Executor) hydrateTitlesFromDisk(ctx context.Context, docIDs []uint32, titles map[uint32]string) {
	reader := e.engine.NewTitleReader(e.engine.AsyncReadWorkers())
	defer reader.Close()

	pool := asyncread.NewPool(reader, len(docIDs))
	for _, docID := range docIDs {
		pool.Enqueue(&asyncread.IndexResult{Posting: index.Posting{DocID: docID}})
	}
	pool.Refill()

	deadline := time.Now().Add(titleHydrationBudget)
	remaining := len(docIDs)
	for remaining > 0 {
		if ctx.Err() != nil {
			return
		}
		if result, ok := pool.PopReadyResult(); ok {
			if title, ok := result.Meta.(string); ok {
				titles[result.Posting.DocID] = title
			}
			remaining--
			pool.Refill()
			continue
		}
		if !time.Now().Before(deadline) {
			e.logger.Warn("title hydration timed out", "pending", remaining)
			return
		}
		pendingCount := pool.Poll(25*time.Millisecond, deadline)
		pool.Refill()
		if pendingCount == 0 && pool.PendingCount() == 0 {
			return
		}
	}
}

func intersectPostings(postingsPerTerm map[string]index.PostingList) map[uint32]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[uint32]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, postings := range postingsPerTerm {
		if len(postings) < shortestLen {
			shortestLen = len(postings)
			shortestTerm = term
		}
	}
	candidates := make(map[uint32]struct{})
	for _, p := range postingsPerTerm[shortestTerm] {
		candidates[p.DocID] = struct{}{}
	}
	for term, postings := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		docSet := make(map[uint32]struct{}, len(postings))
		for _, p := range postings {
			docSet[p.DocID] = struct{}{}
		}
		for docID := range candidates {
			if _, exists := docSet[docID]; !exists {
				delete(candidates, docID)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[uint32]struct{} {
	result := make(map[uint32]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.DocID] = struct{}{}
		}
	}
	return result
}
