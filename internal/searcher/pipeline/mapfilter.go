package pipeline

// MapFilter evaluates an expression against each result's row: in Filter
// mode it discards the result when the expression is falsy, in Map mode it
// stores the computed value under Alias and always passes the result
// through (spec.md §4.8's 7th standard processor, covering both APPLY and
// FILTER).
type MapFilter struct {
	upstream Processor
	lookup   *LookupTable
	expr     Expr
	isFilter bool
	alias    string
}

// NewFilter builds a MapFilter in filter mode.
func NewFilter(upstream Processor, lookup *LookupTable, expr Expr) *MapFilter {
	return &MapFilter{upstream: upstream, lookup: lookup, expr: expr, isFilter: true}
}

// NewApply builds a MapFilter in map mode, writing the expression's value
// into the row under alias.
func NewApply(upstream Processor, lookup *LookupTable, expr Expr, alias string) *MapFilter {
	return &MapFilter{upstream: upstream, lookup: lookup, expr: expr, alias: alias}
}

func (m *MapFilter) Next(ctx *QueryContext) (Status, *SearchResult) {
	for {
		if st := ctx.CheckDeadline(); st != StatusOK {
			return st, nil
		}
		status, res := m.upstream.Next(ctx)
		if status != StatusOK {
			return status, res
		}
		val, err := m.expr.Eval(res.Row, m.lookup)
		if err != nil {
			ctx.Err = err
			return StatusError, nil
		}
		if m.isFilter {
			if truthy(val) {
				return StatusOK, res
			}
			continue
		}
		res.Row.SetByName(m.lookup, m.alias, val)
		return StatusOK, res
	}
}

func (m *MapFilter) Free() { m.upstream.Free() }
