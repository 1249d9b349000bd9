package pipeline

import "testing"

func TestPaginatorOffsetLimit(t *testing.T) {
	items := make([]*SearchResult, 0, 10)
	for i := uint32(0); i < 10; i++ {
		items = append(items, &SearchResult{DocID: i})
	}
	src := newSliceSource(items...)
	p := NewPaginator(src, 3, 4)
	out, status := drain(p, newTestCtx())
	if status != StatusEOF {
		t.Fatalf("status = %v, want Eof", status)
	}
	want := []uint32{3, 4, 5, 6}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].DocID != w {
			t.Errorf("out[%d].DocID = %d, want %d", i, out[i].DocID, w)
		}
	}
}

func TestPaginatorLimitZeroCountOnly(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1}, &SearchResult{DocID: 2})
	p := NewPaginator(src, 0, 0)
	out, status := drain(p, newTestCtx())
	if status != StatusEOF || len(out) != 0 {
		t.Fatalf("got %d results, status %v; want 0 results, Eof", len(out), status)
	}
}

func TestPaginatorOffsetBeyondAvailable(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1})
	p := NewPaginator(src, 5, 10)
	out, status := drain(p, newTestCtx())
	if status != StatusEOF || len(out) != 0 {
		t.Fatalf("got %d results, status %v; want 0 results, Eof", len(out), status)
	}
}
