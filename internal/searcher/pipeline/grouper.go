package pipeline

import (
	"fmt"
	"sort"
)

// ReduceFunc is one GROUPBY...REDUCE accumulator kind (spec.md §4.8:
// "count, sum, quantile stream, first-value-by-sort, etc.").
type ReduceFunc int

const (
	ReduceCount ReduceFunc = iota
	ReduceSum
	ReduceAvg
	ReduceMin
	ReduceMax
	ReduceQuantile
	ReduceFirstValue
)

// Reducer configures one REDUCE clause within a GROUPBY step.
type Reducer struct {
	Func     ReduceFunc
	Source   string // field read from each group member's row
	Alias    string // field written into the group's output row
	Quantile float64
	// SortField/SortDesc select which member's Source value FirstValue
	// keeps, by the member ranking first under that ordering.
	SortField string
	SortDesc  bool
}

type groupState struct {
	count     int64
	sum       float64
	min, max  float64
	haveMM    bool
	values    []float64
	firstVal  any
	firstSort any
	haveFirst bool
}

func (g *groupState) add(r *Reducer, src any, sortVal any) {
	g.count++
	if f, ok := toFloat(src); ok {
		g.sum += f
		if !g.haveMM || f < g.min {
			g.min = f
		}
		if !g.haveMM || f > g.max {
			g.max = f
		}
		g.haveMM = true
		if r.Func == ReduceQuantile {
			g.values = append(g.values, f)
		}
	}
	if r.Func == ReduceFirstValue {
		better := !g.haveFirst
		if !better {
			cmp := compareValues(sortVal, g.firstSort)
			if r.SortDesc {
				better = cmp > 0
			} else {
				better = cmp < 0
			}
		}
		if better {
			g.firstVal = src
			g.firstSort = sortVal
			g.haveFirst = true
		}
	}
}

func (g *groupState) result(r *Reducer) any {
	switch r.Func {
	case ReduceCount:
		return g.count
	case ReduceSum:
		return g.sum
	case ReduceAvg:
		if g.count == 0 {
			return 0.0
		}
		return g.sum / float64(g.count)
	case ReduceMin:
		return g.min
	case ReduceMax:
		return g.max
	case ReduceQuantile:
		return quantile(g.values, r.Quantile)
	case ReduceFirstValue:
		return g.firstVal
	default:
		return nil
	}
}

// quantile returns the sorted value at index floor(q*(n-1)) for q in (0,1),
// the minimum for q<=0, the maximum for q>=1, and 0 for an empty input. It
// does not interpolate between neighbouring values.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// Grouper implements GROUPBY: it drains the upstream fully, hash-grouping
// by the concatenation of groupBy field values, then emits one SearchResult
// per group carrying the reduced fields plus the group-by fields themselves.
type Grouper struct {
	upstream Processor
	lookup   *LookupTable
	groupBy  []string
	reducers []Reducer

	collected bool
	output    []*SearchResult
	outPos    int
	status    Status
}

// NewGrouper builds a Grouper over upstream, grouping by groupBy fields
// (resolved via lookup) and applying reducers to each group.
func NewGrouper(upstream Processor, lookup *LookupTable, groupBy []string, reducers []Reducer) *Grouper {
	return &Grouper{upstream: upstream, lookup: lookup, groupBy: groupBy, reducers: reducers}
}

func groupKeyOf(lookup *LookupTable, groupBy []string, row Row) string {
	key := ""
	for _, field := range groupBy {
		v, _ := row.GetByName(lookup, field)
		key += formatValue(v) + "\x1f"
	}
	return key
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (g *Grouper) collect(ctx *QueryContext) Status {
	groups := make(map[string]*groupState)
	order := make([]string, 0)
	firstRowOf := make(map[string]Row)
	for {
		status, res := g.upstream.Next(ctx)
		if status != StatusOK {
			for _, key := range order {
				gs := groups[key]
				out := firstRowOf[key].Clone()
				for i := range g.reducers {
					out.SetByName(g.lookup, g.reducers[i].Alias, gs.result(&g.reducers[i]))
				}
				g.output = append(g.output, &SearchResult{GroupKey: key, Row: out})
			}
			return status
		}
		key := groupKeyOf(g.lookup, g.groupBy, res.Row)
		gs, ok := groups[key]
		if !ok {
			gs = &groupState{}
			groups[key] = gs
			order = append(order, key)
			row := NewRow(g.lookup.Len())
			for _, field := range g.groupBy {
				v, _ := res.Row.GetByName(g.lookup, field)
				row.SetByName(g.lookup, field, v)
			}
			firstRowOf[key] = row
		}
		for i := range g.reducers {
			src, _ := res.Row.GetByName(g.lookup, g.reducers[i].Source)
			sortVal, _ := res.Row.GetByName(g.lookup, g.reducers[i].SortField)
			gs.add(&g.reducers[i], src, sortVal)
		}
	}
}

func (g *Grouper) Next(ctx *QueryContext) (Status, *SearchResult) {
	if !g.collected {
		g.status = g.collect(ctx)
		g.collected = true
	}
	if g.outPos < len(g.output) {
		r := g.output[g.outPos]
		g.outPos++
		return StatusOK, r
	}
	if g.status == StatusOK {
		return StatusEOF, nil
	}
	return g.status, nil
}

func (g *Grouper) Free() { g.upstream.Free() }
