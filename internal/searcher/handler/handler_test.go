package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shardmesh/searchcore/internal/diag"
	"github.com/shardmesh/searchcore/internal/searcher/executor"
	"github.com/shardmesh/searchcore/internal/searcher/fusion"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/ranker"
)

type stubExecutor struct {
	result *executor.SearchResult
	err    error
	onExec func()
}

func (s *stubExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	if s.onExec != nil {
		s.onExec()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubHybrid struct {
	streams []fusion.Ranked
	result  *executor.HybridSearchResult
	err     error
}

func (s *stubHybrid) Execute(ctx context.Context, plan *parser.HybridPlan, streams []fusion.Ranked) (*executor.HybridSearchResult, error) {
	s.streams = streams
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestHandler(exec SearchExecutor, hybrid HybridExecutor) *Handler {
	return New(exec, hybrid, nil, nil, nil, 10, 100, nil)
}

func TestHybridWithoutExecutorReturns503(t *testing.T) {
	h := newTestHandler(&stubExecutor{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hybrid", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.Hybrid(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHybridRequiresQueryOrStreams(t *testing.T) {
	h := newTestHandler(&stubExecutor{}, &stubHybrid{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hybrid", bytes.NewBufferString(`{"args":["LIMIT","0","10"]}`))
	rec := httptest.NewRecorder()
	h.Hybrid(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHybridBuildsLexicalStreamFromExecutor(t *testing.T) {
	exec := &stubExecutor{result: &executor.SearchResult{
		Results: []ranker.RankedDoc{{DocID: "doc1", Score: 3.0}, {DocID: "doc2", Score: 1.5}},
	}}
	hybrid := &stubHybrid{result: &executor.HybridSearchResult{TotalCandidates: 2}}
	h := newTestHandler(exec, hybrid)

	body, _ := json.Marshal(hybridRequest{Query: "phone", Args: []string{"COMBINE", "RRF"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hybrid", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.Hybrid(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(hybrid.streams) != 1 {
		t.Fatalf("len(streams) = %d, want 1", len(hybrid.streams))
	}
	if got := hybrid.streams[0].DocKeys; len(got) != 2 || got[0] != "doc1" || got[1] != "doc2" {
		t.Fatalf("DocKeys = %v, want [doc1 doc2] in score order", got)
	}
}

func TestHybridMergesClientSuppliedStreams(t *testing.T) {
	hybrid := &stubHybrid{result: &executor.HybridSearchResult{}}
	h := newTestHandler(&stubExecutor{}, hybrid)

	req := hybridRequest{
		Streams: []hybridStreamRequest{
			{DocKeys: []string{"v1", "v2"}, Scores: map[string]float64{"v1": 0.9, "v2": 0.4}},
		},
	}
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/hybrid", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.Hybrid(rec, httpReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(hybrid.streams) != 1 || len(hybrid.streams[0].DocKeys) != 2 {
		t.Fatalf("streams = %+v, want one 2-doc stream", hybrid.streams)
	}
}

func TestSearchRegistersInFlightQueryWithDiag(t *testing.T) {
	registry := diag.NewRegistry()
	var queriesDuring int
	exec := &stubExecutor{
		result: &executor.SearchResult{Results: []ranker.RankedDoc{}},
		onExec: func() { queriesDuring, _ = registry.Counts() },
	}
	h := New(exec, nil, nil, nil, nil, 10, 100, registry)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=phone", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if queriesDuring != 1 {
		t.Fatalf("queries during execution = %d, want 1", queriesDuring)
	}
	if queries, _ := registry.Counts(); queries != 0 {
		t.Fatalf("queries after request = %d, want 0", queries)
	}
}

func TestHybridPropagatesExecutionError(t *testing.T) {
	hybrid := &stubHybrid{err: context.DeadlineExceeded}
	h := newTestHandler(&stubExecutor{}, hybrid)

	body, _ := json.Marshal(hybridRequest{Streams: []hybridStreamRequest{{DocKeys: []string{"a"}}}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hybrid", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.Hybrid(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
