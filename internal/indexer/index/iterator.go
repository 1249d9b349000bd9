package index

// Iterator walks a PostingList (or a boolean combination of several) in
// ascending DocID order, matching the original engine's forward-only
// IndexIterator contract: callers either step one doc at a time with Next,
// or jump ahead to the first doc >= a target with SkipTo, never backward.
type Iterator interface {
	// Next advances to the next posting. It returns false once exhausted.
	Next() (Posting, bool)
	// SkipTo advances to the first posting with DocID >= target, returning
	// it along with whether an exact match (DocID == target) was found.
	SkipTo(target uint32) (posting Posting, exact bool, ok bool)
	// Len reports the iterator's maximum possible remaining size, used by
	// planners to order intersections by estimated selectivity.
	Len() int
}

// TermIterator walks a single term's PostingList.
type TermIterator struct {
	postings PostingList
	pos      int
}

// NewTermIterator wraps a PostingList, which must already be sorted by
// ascending DocID (as returned by MemoryIndex.Search and segment.Reader.Search).
func NewTermIterator(postings PostingList) *TermIterator {
	return &TermIterator{postings: postings, pos: 0}
}

func (t *TermIterator) Next() (Posting, bool) {
	if t.pos >= len(t.postings) {
		return Posting{}, false
	}
	p := t.postings[t.pos]
	t.pos++
	return p, true
}

func (t *TermIterator) SkipTo(target uint32) (Posting, bool, bool) {
	for t.pos < len(t.postings) && t.postings[t.pos].DocID < target {
		t.pos++
	}
	if t.pos >= len(t.postings) {
		return Posting{}, false, false
	}
	p := t.postings[t.pos]
	t.pos++
	return p, p.DocID == target, true
}

func (t *TermIterator) Len() int {
	return len(t.postings) - t.pos
}

// IntersectionIterator yields only docs present in every child iterator,
// merging frequencies and positions from all children (AND semantics).
type IntersectionIterator struct {
	children []Iterator
}

// NewIntersectionIterator builds an AND over the given iterators, ordering
// them by ascending Len so the smallest (most selective) child drives the
// skip-based merge.
func NewIntersectionIterator(children ...Iterator) *IntersectionIterator {
	ordered := make([]Iterator, len(children))
	copy(ordered, children)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Len() < ordered[j-1].Len(); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return &IntersectionIterator{children: ordered}
}

func (it *IntersectionIterator) Next() (Posting, bool) {
	if len(it.children) == 0 {
		return Posting{}, false
	}
	candidate, ok := it.children[0].Next()
	if !ok {
		return Posting{}, false
	}
	return it.advance(candidate)
}

func (it *IntersectionIterator) SkipTo(target uint32) (Posting, bool, bool) {
	if len(it.children) == 0 {
		return Posting{}, false, false
	}
	candidate, _, ok := it.children[0].SkipTo(target)
	if !ok {
		return Posting{}, false, false
	}
	p, found := it.advance(candidate)
	if !found {
		return Posting{}, false, false
	}
	return p, p.DocID == target, true
}

// advance is the leap-frog join: it drives every child to agree on the same
// DocID, restarting the scan from child 0 whenever another child jumps past
// the current candidate, until either all children land on one DocID or one
// of them is exhausted.
func (it *IntersectionIterator) advance(candidate Posting) (Posting, bool) {
	merged := candidate
	for i := 1; i < len(it.children); i++ {
		p, exact, ok := it.children[i].SkipTo(merged.DocID)
		if !ok {
			return Posting{}, false
		}
		if !exact {
			merged, _, ok = it.children[0].SkipTo(p.DocID)
			if !ok {
				return Posting{}, false
			}
			i = 0
			continue
		}
		merged = mergePostings(merged, p)
	}
	return merged, true
}

func mergePostings(a, b Posting) Posting {
	a.Frequency += b.Frequency
	a.Positions = append(a.Positions, b.Positions...)
	return a
}

// UnionIterator yields every doc present in at least one child iterator (OR
// semantics), merging frequencies and positions for docs shared by more
// than one child.
type UnionIterator struct {
	children []Iterator
	heads    []*Posting
}

// NewUnionIterator builds an OR over the given iterators.
func NewUnionIterator(children ...Iterator) *UnionIterator {
	u := &UnionIterator{children: children, heads: make([]*Posting, len(children))}
	for i, c := range children {
		if p, ok := c.Next(); ok {
			pp := p
			u.heads[i] = &pp
		}
	}
	return u
}

func (u *UnionIterator) minDocID() (uint32, bool) {
	min := uint32(0)
	found := false
	for _, h := range u.heads {
		if h == nil {
			continue
		}
		if !found || h.DocID < min {
			min = h.DocID
			found = true
		}
	}
	return min, found
}

func (u *UnionIterator) Next() (Posting, bool) {
	target, ok := u.minDocID()
	if !ok {
		return Posting{}, false
	}
	var merged Posting
	first := true
	for i, h := range u.heads {
		if h == nil || h.DocID != target {
			continue
		}
		if first {
			merged = *h
			first = false
		} else {
			merged = mergePostings(merged, *h)
		}
		if p, ok := u.children[i].Next(); ok {
			pp := p
			u.heads[i] = &pp
		} else {
			u.heads[i] = nil
		}
	}
	return merged, true
}

func (u *UnionIterator) SkipTo(target uint32) (Posting, bool, bool) {
	for {
		min, ok := u.minDocID()
		if !ok {
			return Posting{}, false, false
		}
		if min >= target {
			p, ok := u.Next()
			if !ok {
				return Posting{}, false, false
			}
			return p, p.DocID == target, true
		}
		for i, h := range u.heads {
			if h == nil || h.DocID >= target {
				continue
			}
			p, exact, ok := u.children[i].SkipTo(target)
			if !ok {
				u.heads[i] = nil
				continue
			}
			pp := p
			u.heads[i] = &pp
			_ = exact
		}
	}
}

func (u *UnionIterator) Len() int {
	total := 0
	for _, c := range u.children {
		total += c.Len()
	}
	return total
}
