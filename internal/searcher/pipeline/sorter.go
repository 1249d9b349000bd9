package pipeline

import (
	"container/heap"
	"sort"
)

// Less orders two results: true means a ranks ahead of b.
type Less func(a, b *SearchResult) bool

// DefaultLess is spec.md §4.8's Sorter comparator: score descending,
// doc-id ascending.
func DefaultLess(a, b *SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// MultiKeyLess builds a Less from a SORTBY-style list of (field, desc)
// pairs resolved through t, falling back to DefaultLess when no field
// distinguishes the pair.
func MultiKeyLess(t *LookupTable, keys []SortKey) Less {
	return func(a, b *SearchResult) bool {
		for _, k := range keys {
			av, _ := a.Row.GetByName(t, k.Field)
			bv, _ := b.Row.GetByName(t, k.Field)
			cmp := compareValues(av, bv)
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return DefaultLess(a, b)
	}
}

// SortKey is one SORTBY field/direction pair.
type SortKey struct {
	Field string
	Desc  bool
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// boundedHeap is a min-heap ordered so its root is the WORST-ranked item
// currently held, letting Sorter evict in O(log cap) once it is full.
type boundedHeap struct {
	items []*SearchResult
	less  Less
}

func (h *boundedHeap) Len() int      { return len(h.items) }
func (h *boundedHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedHeap) Less(i, j int) bool {
	// Root = worst: items[i] sorts first (is the heap minimum) when it
	// ranks worse than items[j], i.e. when items[j] is better.
	return h.less(h.items[j], h.items[i])
}
func (h *boundedHeap) Push(x any) { h.items = append(h.items, x.(*SearchResult)) }
func (h *boundedHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Sorter is a bounded top-K processor: a heap of size offset+limit, filled
// by draining the upstream on the first Next call, then drained itself in
// rank order. spec.md §4.8: "bounded heap of size offset+limit; compare by
// score descending, doc-id ascending; optional multi-key sort using the
// lookup row."
type Sorter struct {
	upstream Processor
	cap      int
	less     Less

	h             *boundedHeap
	collected     bool
	output        []*SearchResult
	outPos        int
	pendingStatus Status
}

// NewSorter builds a Sorter bounded to offset+limit entries. A nil less
// falls back to DefaultLess.
func NewSorter(upstream Processor, offset, limit int, less Less) *Sorter {
	if less == nil {
		less = DefaultLess
	}
	cap := offset + limit
	if cap <= 0 {
		cap = limit
	}
	return &Sorter{upstream: upstream, cap: cap, less: less, h: &boundedHeap{less: less}}
}

func (s *Sorter) push(res *SearchResult) {
	if s.cap <= 0 {
		return
	}
	if s.h.Len() < s.cap {
		heap.Push(s.h, res)
		return
	}
	if s.h.Len() > 0 && s.less(res, s.h.items[0]) {
		s.h.items[0] = res
		heap.Fix(s.h, 0)
	}
}

func (s *Sorter) collect(ctx *QueryContext) Status {
	for {
		status, res := s.upstream.Next(ctx)
		if status == StatusOK {
			s.push(res)
			continue
		}
		s.finalize()
		return status
	}
}

func (s *Sorter) finalize() {
	items := make([]*SearchResult, len(s.h.items))
	copy(items, s.h.items)
	sort.Slice(items, func(i, j int) bool { return s.less(items[i], items[j]) })
	s.output = items
}

func (s *Sorter) Next(ctx *QueryContext) (Status, *SearchResult) {
	if !s.collected {
		s.pendingStatus = s.collect(ctx)
		s.collected = true
	}
	if s.outPos < len(s.output) {
		r := s.output[s.outPos]
		s.outPos++
		return StatusOK, r
	}
	if s.pendingStatus == StatusEOF || s.pendingStatus == StatusOK {
		return StatusEOF, nil
	}
	return s.pendingStatus, nil
}

func (s *Sorter) Free() { s.upstream.Free() }
