package executor

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shardmesh/searchcore/internal/indexer"
	"github.com/shardmesh/searchcore/internal/indexer/index"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/ranker"
)

// maxConcurrentShardQueries bounds how many shard queries run at once.
// internal/cluster/fanout.go takes its node-dispatch bound as a parameter
// instead of using this constant.
const maxConcurrentShardQueries = 32

// ShardResult holds one shard engine's per-term postings, still addressed by
// that shard's locally interned uint32 doc-ids (see index.DocIDMap) — never
// comparable across shards without going through docRef remapping below.
type ShardResult struct {
	ShardID   int
	Postings  map[string]index.PostingList
	TotalDocs int64
	AvgDocLen float64
	Engine    *indexer.Engine
}

// ShardedExecutor fans a query out across multiple local indexer engines
// (one per shard) and merges the results. A shard-local doc-id is only
// meaningful within the DocIDMap of the engine that produced it, so this
// executor remaps every (shardID, localDocID) pair onto a fresh global id
// before handing candidates to ranker.Rank, exactly the "intern small
// integers, keep the string at the edges" trick index.DocIDMap itself uses
// for a single shard, applied one level up.
type ShardedExecutor struct {
	engines map[int]*indexer.Engine
	logger  *slog.Logger
}

func NewSharded(engines map[int]*indexer.Engine) *ShardedExecutor {
	return &ShardedExecutor{
		engines: engines,
		logger:  slog.Default().With("component", "sharded-executor"),
	}
}

// docRef is the reverse side of the global-id remap: which shard and which
// shard-local doc-id a merged global id stands for.
type docRef struct {
	shardID int
	localID uint32
}

func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{
			Query:   plan.RawQuery,
			Results: []ranker.RankedDoc{},
		}, nil
	}
	shardResults, err := se.fanOut(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("shard fan-out: %w", err)
	}

	globalID := make(map[docRef]uint32)
	refs := make([]docRef, 0)
	remap := func(shardID int, localID uint32) uint32 {
		ref := docRef{shardID: shardID, localID: localID}
		if id, ok := globalID[ref]; ok {
			return id
		}
		id := uint32(len(refs))
		globalID[ref] = id
		refs = append(refs, ref)
		return id
	}

	mergedPostings := make(map[string]index.PostingList)
	termStats := make(map[string]int)
	var globalTotalDocs int64
	var globalTotalTokens float64
	engineByGlobalID := make(map[uint32]*indexer.Engine)
	for _, sr := range shardResults {
		globalTotalDocs += sr.TotalDocs
		globalTotalTokens += sr.AvgDocLen * float64(sr.TotalDocs)
		for term, postings := range sr.Postings {
			remapped := make(index.PostingList, len(postings))
			for i, p := range postings {
				gid := remap(sr.ShardID, p.DocID)
				remapped[i] = index.Posting{DocID: gid, Frequency: p.Frequency, Positions: p.Positions}
				engineByGlobalID[gid] = sr.Engine
			}
			mergedPostings[term] = append(mergedPostings[term], remapped...)
			termStats[term] += len(postings)
		}
	}
	var globalAvgDocLen float64
	if globalTotalDocs > 0 {
		globalAvgDocLen = globalTotalTokens / float64(globalTotalDocs)
	}

	excludeDocIDs := make(map[uint32]struct{})
	for term, postings := range mergedPostings {
		isExclude := false
		for _, t := range plan.ExcludeTerms {
			if t == term {
				isExclude = true
				break
			}
		}
		if !isExclude {
			continue
		}
		for _, p := range postings {
			excludeDocIDs[p.DocID] = struct{}{}
		}
	}
	searchPostings := make(map[string]index.PostingList)
	for _, term := range plan.Terms {
		if postings, ok := mergedPostings[term]; ok {
			searchPostings[term] = postings
		}
	}

	var candidateDocIDs map[uint32]struct{}
	switch plan.Type {
	case parser.QueryAND:
		candidateDocIDs = intersectPostings(searchPostings)
	case parser.QueryOR:
		candidateDocIDs = unionPostings(searchPostings)
	}

	for docID := range excludeDocIDs {
		delete(candidateDocIDs, docID)
	}
	filteredPostings := make(map[string]index.PostingList)
	for term, postings := range searchPostings {
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
		TotalDocs:    globalTotalDocs,
		AvgDocLength: globalAvgDocLen,
	}

	getDocInfo := func(docID uint32) ranker.DocInfo {
		eng, ok := engineByGlobalID[docID]
		if !ok {
			return ranker.DocInfo{DocLength: 0}
		}
		return ranker.DocInfo{DocLength: eng.GetDocLengthByID(refs[docID].localID)}
	}
	ranked := ranker.Rank(filteredPostings, params, getDocInfo, limit)
	resolved := ranker.Resolve(ranked, func(docID uint32) (string, bool) {
		eng, ok := engineByGlobalID[docID]
		if !ok {
			return "", false
		}
		return eng.DocKey(refs[docID].localID)
	})
	se.logger.Info("sharded query executed",
		"query", plan.RawQuery,
		"shards_queried", len(shardResults),
		"global_candidates", len(candidateDocIDs),
		"results", len(resolved),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(candidateDocIDs),
		Results:   resolved,
		TermStats: termStats,
	}, nil
}

func (se *ShardedExecutor) fanOut(ctx context.Context, plan *parser.QueryPlan) ([]ShardResult, error) {
	allTerms := append(plan.Terms, plan.ExcludeTerms...)
	results := make([]ShardResult, len(se.engines))
	failed := make([]bool, len(se.engines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentShardQueries)
	i := 0
	for shardID, engine := range se.engines {
		idx, sid, eng := i, shardID, engine
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sr := ShardResult{
				ShardID:   sid,
				Postings:  make(map[string]index.PostingList),
				TotalDocs: eng.GetTotalDocs(),
				AvgDocLen: eng.GetAvgDocLength(),
				Engine:    eng,
			}
			for _, term := range allTerms {
				postings, err := eng.Search(term)
				if err != nil {
					se.logger.Error("shard query failed", "shard", sid, "term", term, "error", err)
					failed[idx] = true
					return nil
				}
				if len(postings) > 0 {
					sr.Postings[term] = postings
				}
			}
			results[idx] = sr
			return nil
		})
		i++
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("shard fan-out: %w", err)
	}

	shardResults := make([]ShardResult, 0, len(se.engines))
	for idx, sr := range results {
		if failed[idx] {
			continue
		}
		shardResults = append(shardResults, sr)
	}
	if len(shardResults) == 0 && len(se.engines) > 0 {
		return nil, fmt.Errorf("all %d shards failed", len(se.engines))
	}
	return shardResults, nil
}
