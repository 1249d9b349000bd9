package pipeline

import "testing"

func TestSorterOrdersByScoreDescDocAsc(t *testing.T) {
	src := newSliceSource(
		&SearchResult{DocID: 3, Score: 1.0},
		&SearchResult{DocID: 1, Score: 2.0},
		&SearchResult{DocID: 2, Score: 2.0},
		&SearchResult{DocID: 4, Score: 0.5},
	)
	s := NewSorter(src, 0, 10, nil)
	out, status := drain(s, newTestCtx())
	if status != StatusEOF {
		t.Fatalf("status = %v, want Eof", status)
	}
	want := []uint32{1, 2, 3, 4}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("out[%d].DocID = %d, want %d", i, out[i].DocID, w)
		}
	}
}

func TestSorterBoundedHeapEvictsWorst(t *testing.T) {
	items := make([]*SearchResult, 0, 100)
	for i := uint32(0); i < 100; i++ {
		items = append(items, &SearchResult{DocID: i, Score: float64(i)})
	}
	src := newSliceSource(items...)
	s := NewSorter(src, 0, 3, nil)
	out, _ := drain(s, newTestCtx())
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	want := []uint32{99, 98, 97}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("out[%d].DocID = %d, want %d", i, out[i].DocID, w)
		}
	}
}

func TestSorterMultiKey(t *testing.T) {
	lookup := NewLookupTable()
	src := newSliceSource(
		resultWithRow(1, 0, map[string]any{"price": 30.0}, lookup),
		resultWithRow(2, 0, map[string]any{"price": 10.0}, lookup),
		resultWithRow(3, 0, map[string]any{"price": 20.0}, lookup),
	)
	less := MultiKeyLess(lookup, []SortKey{{Field: "price", Desc: false}})
	s := NewSorter(src, 0, 10, less)
	out, _ := drain(s, newTestCtx())
	want := []uint32{2, 3, 1}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("out[%d].DocID = %d, want %d", i, out[i].DocID, w)
		}
	}
}

func TestSorterPropagatesUpstreamError(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1, Score: 1})
	src.terminal = StatusError
	s := NewSorter(src, 0, 10, nil)
	ctx := newTestCtx()
	out, status := drain(s, ctx)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (partial results still flushed)", len(out))
	}
	if status != StatusError {
		t.Fatalf("status = %v, want Error", status)
	}
}
