package pipeline

import "testing"

func TestGrouperCountAndSum(t *testing.T) {
	lookup := NewLookupTable()
	src := newSliceSource(
		resultWithRow(1, 0, map[string]any{"category": "a", "price": 10.0}, lookup),
		resultWithRow(2, 0, map[string]any{"category": "a", "price": 20.0}, lookup),
		resultWithRow(3, 0, map[string]any{"category": "b", "price": 5.0}, lookup),
	)
	reducers := []Reducer{
		{Func: ReduceCount, Alias: "n"},
		{Func: ReduceSum, Source: "price", Alias: "total"},
	}
	g := NewGrouper(src, lookup, []string{"category"}, reducers)
	out, status := drain(g, newTestCtx())
	if status != StatusEOF {
		t.Fatalf("status = %v, want Eof", status)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 groups", len(out))
	}
	totals := map[string]float64{}
	counts := map[string]int64{}
	for _, r := range out {
		cat, _ := r.Row.GetByName(lookup, "category")
		n, _ := r.Row.GetByName(lookup, "n")
		total, _ := r.Row.GetByName(lookup, "total")
		totals[cat.(string)] = total.(float64)
		counts[cat.(string)] = n.(int64)
	}
	if counts["a"] != 2 || totals["a"] != 30.0 {
		t.Errorf("group a: count=%v total=%v, want 2/30", counts["a"], totals["a"])
	}
	if counts["b"] != 1 || totals["b"] != 5.0 {
		t.Errorf("group b: count=%v total=%v, want 1/5", counts["b"], totals["b"])
	}
}

func TestGrouperFirstValueBySort(t *testing.T) {
	lookup := NewLookupTable()
	src := newSliceSource(
		resultWithRow(1, 0, map[string]any{"category": "a", "title": "old", "ts": 1.0}, lookup),
		resultWithRow(2, 0, map[string]any{"category": "a", "title": "new", "ts": 5.0}, lookup),
	)
	reducers := []Reducer{
		{Func: ReduceFirstValue, Source: "title", Alias: "latest", SortField: "ts", SortDesc: true},
	}
	g := NewGrouper(src, lookup, []string{"category"}, reducers)
	out, _ := drain(g, newTestCtx())
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	latest, _ := out[0].Row.GetByName(lookup, "latest")
	if latest != "new" {
		t.Errorf("latest = %v, want \"new\"", latest)
	}
}
