// Package fusion merges the ranked result streams produced by a hybrid
// query's independent sub-queries (typically one lexical and one vector
// search) into a single ranked list, using either Reciprocal Rank Fusion
// or a linear combination of per-stream scores.
package fusion

import "sort"

// Ranked is one sub-query's ranked result stream: DocKeys in descending-score
// order. Position in the slice is the stream's 1-based rank for RRF; Score
// is looked up by key for Linear.
type Ranked struct {
	DocKeys []string
	Scores  map[string]float64
}

// Result is one fused, scored document, ready for final sort/pagination.
type Result struct {
	DocKey string
	Score  float64
}

// DefaultRRFConstant and DefaultRRFWindow are the hybrid query's defaults when COMBINE RRF
// omits CONSTANT/WINDOW (original_source/src/hybrid/hybrid_scoring.h).
const (
	DefaultRRFConstant = 60
	DefaultRRFWindow   = 20
)

// RRF computes score(doc) = Σ 1/(k+rank_i(doc)) across streams, using
// rank 0 (no contribution) for any stream missing the doc, and considering
// only the first window entries of each stream. Ties keep the order in
// which documents first appear across the streams.
func RRF(streams []Ranked, k int, window int) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if window <= 0 {
		window = DefaultRRFWindow
	}
	scores := make(map[string]float64)
	order := make([]string, 0)
	for _, s := range streams {
		limit := len(s.DocKeys)
		if limit > window {
			limit = window
		}
		for i := 0; i < limit; i++ {
			key := s.DocKeys[i]
			rank := i + 1 // 1-based
			if _, seen := scores[key]; !seen {
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(k+rank)
		}
	}
	return sortedResults(scores, order)
}

// Linear computes score(doc) = Σ weight_i * score_i(doc), using 0 for any
// stream missing the doc. len(weights) must equal len(streams); a caller
// with exactly two sub-queries passes {alpha, beta}.
func Linear(streams []Ranked, weights []float64) []Result {
	scores := make(map[string]float64)
	order := make([]string, 0)
	for i, s := range streams {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for _, key := range s.DocKeys {
			if _, seen := scores[key]; !seen {
				order = append(order, key)
			}
			scores[key] += w * s.Scores[key]
		}
	}
	return sortedResults(scores, order)
}

// sortedResults ranks docs descending by score, breaking ties by first
// appearance order to keep the fusion deterministic.
func sortedResults(scores map[string]float64, order []string) []Result {
	pos := make(map[string]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	out := make([]Result, 0, len(order))
	for _, k := range order {
		out = append(out, Result{DocKey: k, Score: scores[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return pos[out[i].DocKey] < pos[out[j].DocKey]
	})
	return out
}
