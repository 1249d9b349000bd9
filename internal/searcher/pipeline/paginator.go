package pipeline

// Paginator drops the first offset results and yields up to limit
// thereafter. A negative limit means unbounded.
type Paginator struct {
	upstream Processor
	offset   int
	limit    int
	skipped  int
	emitted  int
}

// NewPaginator wraps upstream with an OFFSET/LIMIT window.
func NewPaginator(upstream Processor, offset, limit int) *Paginator {
	return &Paginator{upstream: upstream, offset: offset, limit: limit}
}

func (p *Paginator) Next(ctx *QueryContext) (Status, *SearchResult) {
	if p.limit >= 0 && p.emitted >= p.limit {
		return StatusEOF, nil
	}
	for p.skipped < p.offset {
		status, _ := p.upstream.Next(ctx)
		if status != StatusOK {
			return status, nil
		}
		p.skipped++
	}
	status, res := p.upstream.Next(ctx)
	if status != StatusOK {
		return status, nil
	}
	p.emitted++
	return StatusOK, res
}

func (p *Paginator) Free() { p.upstream.Free() }
