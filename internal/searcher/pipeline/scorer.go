package pipeline

// Stats carries the corpus statistics a ScoreFunc needs, mirroring
// ranker.RankParams but kept local to the pipeline package so scorers other
// than BM25 can be plugged in without an import cycle.
type Stats struct {
	TotalDocs    int64
	AvgDocLength float64
}

// ScoreFunc is the pluggable scoring function spec.md §4.8 describes:
// "{IndexResult, DocumentMetadata, minScore, indexStats} -> number plus an
// optional explanation". DocLength stands in for the document-metadata
// handle the core treats opaquely.
type ScoreFunc func(res *SearchResult, docLength int, stats Stats) (score float64, explain string)

// Scorer computes Score from the upstream result and the pluggable
// ScoreFunc, dropping any result below minScore.
type Scorer struct {
	upstream    Processor
	score       ScoreFunc
	stats       Stats
	minScore    float64
	explain     bool
	docLengthOf func(docID uint32) int
}

// NewScorer wraps upstream with fn, looking up each result's document
// length via docLengthOf. explain controls whether the ScoreFunc's
// explanation string is retained on the result.
func NewScorer(upstream Processor, fn ScoreFunc, stats Stats, minScore float64, explain bool, docLengthOf func(docID uint32) int) *Scorer {
	return &Scorer{upstream: upstream, score: fn, stats: stats, minScore: minScore, explain: explain, docLengthOf: docLengthOf}
}

func (s *Scorer) Next(ctx *QueryContext) (Status, *SearchResult) {
	for {
		if st := ctx.CheckDeadline(); st != StatusOK {
			return st, nil
		}
		status, res := s.upstream.Next(ctx)
		if status != StatusOK {
			return status, res
		}
		docLength := 0
		if s.docLengthOf != nil {
			docLength = s.docLengthOf(res.DocID)
		}
		score, explain := s.score(res, docLength, s.stats)
		if score < s.minScore {
			continue
		}
		res.Score = score
		if s.explain {
			res.Explain = explain
		}
		return StatusOK, res
	}
}

func (s *Scorer) Free() { s.upstream.Free() }
