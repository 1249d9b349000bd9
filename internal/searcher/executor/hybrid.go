package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shardmesh/searchcore/internal/searcher/fusion"
	"github.com/shardmesh/searchcore/internal/searcher/parser"
	"github.com/shardmesh/searchcore/internal/searcher/pipeline"
)

// HybridResult is one fused, post-processed row of an FT.HYBRID response.
type HybridResult struct {
	DocKey string         `json:"doc_key"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

// HybridSearchResult is the final response of a hybrid query: the fused,
// grouped/applied/filtered/sorted/paginated rows plus how many candidates
// were fused before pagination.
type HybridSearchResult struct {
	TotalCandidates int            `json:"total_candidates"`
	Results         []HybridResult `json:"results"`
	CursorID        uint64         `json:"cursor_id,omitempty"`
}

// HybridExecutor assembles spec.md §4.8's result-processor chain
// (Scanner-equivalent source over fused streams -> Grouper -> Apply ->
// Filter -> Sorter -> Paginator) on top of the fused output of two or more
// independently-ranked sub-query streams (typically one lexical, one
// vector), combined per plan.Combine by internal/searcher/fusion.
type HybridExecutor struct {
	cursors      *pipeline.CursorTable
	defaultLimit int
}

// NewHybrid builds a HybridExecutor. cursors may be nil, in which case
// WITHCURSOR plans fall back to returning every result inline. defaultLimit
// is applied when a plan omits LIMIT (and isn't COUNT-only), mirroring
// internal/searcher/handler.Handler's own defaultLimit fallback.
func NewHybrid(cursors *pipeline.CursorTable, defaultLimit int) *HybridExecutor {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &HybridExecutor{cursors: cursors, defaultLimit: defaultLimit}
}

// Execute fuses streams per plan.Combine and runs the resulting rows
// through the processor chain plan describes (GROUPBY/APPLY/FILTER/SORTBY/
// LIMIT), returning the finished, paginated result set.
func (h *HybridExecutor) Execute(ctx context.Context, plan *parser.HybridPlan, streams []fusion.Ranked) (*HybridSearchResult, error) {
	if plan.Limit <= 0 && !plan.CountOnly {
		plan.Limit = int64(h.defaultLimit)
	}

	var fused []fusion.Result
	switch plan.Combine {
	case parser.CombineRRF:
		window := int(plan.RRFWindow)
		if window <= 0 {
			window = parser.HybridDefaultWindow
		}
		k := int(plan.RRFConstant)
		if k <= 0 {
			k = parser.HybridDefaultRRFConstant
		}
		fused = fusion.RRF(streams, k, window)
	case parser.CombineLinear:
		fused = fusion.Linear(streams, plan.LinearWeights)
	default:
		return nil, fmt.Errorf("unknown combine method %v", plan.Combine)
	}

	lookup := pipeline.NewLookupTable()
	var chain pipeline.Processor = newFusionSource(fused, lookup)

	groupers, err := buildReducers(plan.Reduce)
	if err != nil {
		return nil, fmt.Errorf("building REDUCE clauses: %w", err)
	}
	if len(plan.GroupBy) > 0 {
		chain = pipeline.NewGrouper(chain, lookup, trimFieldNames(plan.GroupBy), groupers)
	}

	for _, apply := range plan.Apply {
		expr, err := pipeline.ParseExpr(apply.Expr)
		if err != nil {
			return nil, fmt.Errorf("parsing APPLY %q: %w", apply.Expr, err)
		}
		alias := apply.Alias
		if alias == "" {
			alias = apply.Expr
		}
		chain = pipeline.NewApply(chain, lookup, expr, alias)
	}

	for _, filterExpr := range plan.Filter {
		expr, err := pipeline.ParseExpr(filterExpr)
		if err != nil {
			return nil, fmt.Errorf("parsing FILTER %q: %w", filterExpr, err)
		}
		chain = pipeline.NewFilter(chain, lookup, expr)
	}

	if len(plan.SortBy) > 0 {
		keys := make([]pipeline.SortKey, len(plan.SortBy))
		for i, sk := range plan.SortBy {
			keys[i] = pipeline.SortKey{Field: trimFieldName(sk.Field), Desc: sk.Desc}
		}
		chain = pipeline.NewSorter(chain, 0, sortLimit(plan), pipeline.MultiKeyLess(lookup, keys))
	} else {
		chain = pipeline.NewSorter(chain, 0, sortLimit(plan), pipeline.DefaultLess)
	}

	qctx := pipeline.NewQueryContext(int(plan.Limit), 0, pipeline.TimeoutReturn, pipeline.OomReturn)

	if plan.WithCursor && h.cursors != nil {
		chunk := int(plan.CursorCount)
		if chunk <= 0 {
			chunk = 10
		}
		maxIdle := time.Duration(plan.MaxIdleMS) * time.Millisecond
		cur := h.cursors.Register(pipeline.NewPaginator(chain, int(plan.Offset), int(plan.Limit)), qctx, chunk, maxIdle)
		page, _, err := cur.Read()
		if err != nil {
			return nil, fmt.Errorf("reading cursor page: %w", err)
		}
		return &HybridSearchResult{
			TotalCandidates: len(fused),
			Results:         toHybridResults(page, lookup),
			CursorID:        cur.ID,
		}, nil
	}

	paginated := pipeline.NewPaginator(chain, int(plan.Offset), int(plan.Limit))
	out, status := drainChain(paginated, qctx)
	if status != pipeline.StatusEOF && status != pipeline.StatusOK {
		return nil, fmt.Errorf("hybrid query aborted: %v", status)
	}
	return &HybridSearchResult{
		TotalCandidates: len(fused),
		Results:         toHybridResults(out, lookup),
	}, nil
}

func sortLimit(plan *parser.HybridPlan) int {
	if plan.Limit <= 0 {
		return 0
	}
	return int(plan.Offset + plan.Limit)
}

func drainChain(p pipeline.Processor, ctx *pipeline.QueryContext) ([]*pipeline.SearchResult, pipeline.Status) {
	var out []*pipeline.SearchResult
	for {
		status, res := p.Next(ctx)
		if status != pipeline.StatusOK {
			return out, status
		}
		out = append(out, res)
	}
}

func toHybridResults(results []*pipeline.SearchResult, lookup *pipeline.LookupTable) []HybridResult {
	out := make([]HybridResult, 0, len(results))
	for _, r := range results {
		out = append(out, HybridResult{
			DocKey: r.DocKey,
			Score:  r.Score,
			Fields: r.Row.Map(lookup),
		})
	}
	return out
}

// fusionSource adapts a fused []fusion.Result into a pipeline.Processor, the
// chain's entry point in place of a Scanner over a posting-list iterator
// (the hybrid pipeline's candidates already come pre-scored from fusion,
// not from a term iterator).
type fusionSource struct {
	results []fusion.Result
	lookup  *pipeline.LookupTable
	pos     int
}

func newFusionSource(results []fusion.Result, lookup *pipeline.LookupTable) *fusionSource {
	return &fusionSource{results: results, lookup: lookup}
}

func (s *fusionSource) Next(ctx *pipeline.QueryContext) (pipeline.Status, *pipeline.SearchResult) {
	if st := ctx.CheckDeadline(); st != pipeline.StatusOK {
		return st, nil
	}
	if s.pos >= len(s.results) {
		return pipeline.StatusEOF, nil
	}
	r := s.results[s.pos]
	s.pos++
	row := pipeline.NewRow(s.lookup.Len())
	row.SetByName(s.lookup, "score", r.Score)
	return pipeline.StatusOK, &pipeline.SearchResult{DocKey: r.DocKey, Score: r.Score, Row: row}
}

func (s *fusionSource) Free() {}

// buildReducers converts the declarative REDUCE clauses (function name, then
// a fixed count of argument tokens that may end with "AS alias") into
// pipeline.Reducers.
func buildReducers(clauses []parser.ReduceClause) ([]pipeline.Reducer, error) {
	reducers := make([]pipeline.Reducer, 0, len(clauses))
	for _, rc := range clauses {
		args, alias := splitReduceAlias(rc.Args)
		fn, err := reduceFuncFromName(rc.Func)
		if err != nil {
			return nil, err
		}
		red := pipeline.Reducer{Func: fn}
		switch fn {
		case pipeline.ReduceCount:
			red.Alias = defaultAlias(alias, "count")
		case pipeline.ReduceQuantile:
			if len(args) < 2 {
				return nil, fmt.Errorf("REDUCE QUANTILE requires a field and a quantile")
			}
			red.Source = trimFieldName(args[0])
			q, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return nil, fmt.Errorf("REDUCE QUANTILE: invalid quantile %q: %w", args[1], err)
			}
			red.Quantile = q
			red.Alias = defaultAlias(alias, "quantile_"+red.Source)
		case pipeline.ReduceFirstValue:
			if len(args) < 1 {
				return nil, fmt.Errorf("REDUCE FIRST_VALUE requires a field")
			}
			red.Source = trimFieldName(args[0])
			red.SortField = red.Source
			if len(args) >= 3 && strings.EqualFold(args[1], "BY") {
				red.SortField = trimFieldName(args[2])
				if len(args) >= 4 && strings.EqualFold(args[3], "DESC") {
					red.SortDesc = true
				}
			}
			red.Alias = defaultAlias(alias, "first_"+red.Source)
		default:
			if len(args) < 1 {
				return nil, fmt.Errorf("REDUCE %s requires a field", rc.Func)
			}
			red.Source = trimFieldName(args[0])
			red.Alias = defaultAlias(alias, strings.ToLower(rc.Func)+"_"+red.Source)
		}
		reducers = append(reducers, red)
	}
	return reducers, nil
}

func reduceFuncFromName(name string) (pipeline.ReduceFunc, error) {
	switch strings.ToUpper(name) {
	case "COUNT":
		return pipeline.ReduceCount, nil
	case "SUM":
		return pipeline.ReduceSum, nil
	case "AVG":
		return pipeline.ReduceAvg, nil
	case "MIN":
		return pipeline.ReduceMin, nil
	case "MAX":
		return pipeline.ReduceMax, nil
	case "QUANTILE":
		return pipeline.ReduceQuantile, nil
	case "FIRST_VALUE":
		return pipeline.ReduceFirstValue, nil
	default:
		return 0, fmt.Errorf("unknown REDUCE function %q", name)
	}
}

// splitReduceAlias pulls a trailing "AS alias" pair off args, if present.
func splitReduceAlias(args []string) (rest []string, alias string) {
	if len(args) >= 2 && strings.EqualFold(args[len(args)-2], "AS") {
		return args[:len(args)-2], args[len(args)-1]
	}
	return args, ""
}

func defaultAlias(alias, fallback string) string {
	if alias != "" {
		return alias
	}
	return fallback
}

func trimFieldName(field string) string {
	return strings.TrimPrefix(field, "@")
}

func trimFieldNames(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = trimFieldName(f)
	}
	return out
}
