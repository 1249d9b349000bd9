package pipeline

// sliceSource is a minimal Processor for tests: it replays a fixed slice of
// results, then an optional terminal status (defaulting to StatusEOF).
type sliceSource struct {
	items    []*SearchResult
	pos      int
	freed    bool
	terminal Status
}

func newSliceSource(items ...*SearchResult) *sliceSource {
	return &sliceSource{items: items}
}

func (s *sliceSource) Next(ctx *QueryContext) (Status, *SearchResult) {
	if st := ctx.CheckDeadline(); st != StatusOK {
		return st, nil
	}
	if s.pos >= len(s.items) {
		if s.terminal != StatusOK {
			return s.terminal, nil
		}
		return StatusEOF, nil
	}
	r := s.items[s.pos]
	s.pos++
	return StatusOK, r
}

func (s *sliceSource) Free() { s.freed = true }

func resultWithRow(docID uint32, score float64, fields map[string]any, lookup *LookupTable) *SearchResult {
	row := NewRow(lookup.Len())
	for k, v := range fields {
		row.SetByName(lookup, k, v)
	}
	return &SearchResult{DocID: docID, Score: score, Row: row}
}

func drain(p Processor, ctx *QueryContext) ([]*SearchResult, Status) {
	var out []*SearchResult
	for {
		status, res := p.Next(ctx)
		if status != StatusOK {
			return out, status
		}
		out = append(out, res)
	}
}

func newTestCtx() *QueryContext {
	return NewQueryContext(0, 0, TimeoutReturn, OomReturn)
}
