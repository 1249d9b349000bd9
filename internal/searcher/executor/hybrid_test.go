package executor

import (
	"context"
	"testing"

	"github.com/shardmesh/searchcore/internal/searcher/fusion"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
)

func TestHybridExecuteRRFBasic(t *testing.T) {
	lexical := fusion.Ranked{DocKeys: []string{"doc1", "doc2", "doc3"}}
	vector := fusion.Ranked{DocKeys: []string{"doc2", "doc1", "doc4"}}

	plan := &parser.HybridPlan{
		Combine: parser.CombineRRF,
		Limit:   10,
	}
	he := NewHybrid(nil, 10)
	res, err := he.Execute(context.Background(), plan, []fusion.Ranked{lexical, vector})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.TotalCandidates != 4 {
		t.Fatalf("TotalCandidates = %d, want 4", res.TotalCandidates)
	}
	if len(res.Results) != 4 {
		t.Fatalf("len(Results) = %d, want 4", len(res.Results))
	}
	// doc1 and doc2 both rank in the top two of both streams, so they
	// should out-score doc3/doc4 under RRF.
	top := map[string]bool{res.Results[0].DocKey: true, res.Results[1].DocKey: true}
	if !top["doc1"] || !top["doc2"] {
		t.Fatalf("top two = %v, want doc1 and doc2", res.Results[:2])
	}
}

func TestHybridExecuteRespectsLimit(t *testing.T) {
	lexical := fusion.Ranked{DocKeys: []string{"a", "b", "c", "d", "e"}}
	plan := &parser.HybridPlan{Combine: parser.CombineRRF, Limit: 2}
	he := NewHybrid(nil, 10)
	res, err := he.Execute(context.Background(), plan, []fusion.Ranked{lexical})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(res.Results))
	}
}

func TestHybridExecuteFilterDropsLowScores(t *testing.T) {
	streams := []fusion.Ranked{{
		DocKeys: []string{"a", "b"},
		Scores:  map[string]float64{"a": 0.9, "b": 0.1},
	}}
	plan := &parser.HybridPlan{
		Combine:       parser.CombineLinear,
		LinearWeights: []float64{1.0},
		Limit:         10,
		Filter:        []string{"@score > 0.5"},
	}
	he := NewHybrid(nil, 10)
	res, err := he.Execute(context.Background(), plan, streams)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].DocKey != "a" {
		t.Fatalf("Results = %+v, want only doc a", res.Results)
	}
}

func TestHybridExecuteGroupByCount(t *testing.T) {
	streams := []fusion.Ranked{{
		DocKeys: []string{"a", "b", "c"},
		Scores:  map[string]float64{"a": 1, "b": 1, "c": 1},
	}}
	plan := &parser.HybridPlan{
		Combine:       parser.CombineLinear,
		LinearWeights: []float64{1.0},
		Limit:         10,
		Apply:         []parser.ApplyClause{{Expr: "@score", Alias: "bucket"}},
		GroupBy:       []string{"@bucket"},
		Reduce:        []parser.ReduceClause{{Func: "COUNT", Args: nil}},
	}
	he := NewHybrid(nil, 10)
	res, err := he.Execute(context.Background(), plan, streams)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1 group", len(res.Results))
	}
	if count, _ := res.Results[0].Fields["count"].(int64); count != 3 {
		t.Fatalf("count = %v, want 3", res.Results[0].Fields["count"])
	}
}
