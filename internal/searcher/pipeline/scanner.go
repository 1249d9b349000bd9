package pipeline

import "github.com/shardmesh/searchcore/internal/indexer/index"

// Scanner is the chain's source processor: it walks a posting-list iterator
// and materializes a SearchResult per posting, the first stage of spec.md
// §4.8's scan -> score -> sort -> ... chain.
type Scanner struct {
	it         index.Iterator
	resolveKey func(docID uint32) (string, bool)
}

// NewScanner wraps it, resolving each posting's interned doc-id back to its
// external key via resolveKey (see index.DocIDMap/Engine.DocKey).
func NewScanner(it index.Iterator, resolveKey func(docID uint32) (string, bool)) *Scanner {
	return &Scanner{it: it, resolveKey: resolveKey}
}

func (s *Scanner) Next(ctx *QueryContext) (Status, *SearchResult) {
	if st := ctx.CheckDeadline(); st != StatusOK {
		return st, nil
	}
	p, ok := s.it.Next()
	if !ok {
		return StatusEOF, nil
	}
	key := ""
	if s.resolveKey != nil {
		key, _ = s.resolveKey(p.DocID)
	}
	ctx.TotalResults++
	return StatusOK, &SearchResult{DocID: p.DocID, DocKey: key, Weight: 1}
}

func (s *Scanner) Free() {}
