package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shardmesh/searchcore/internal/searcher/fusion"
	apperrors "github.com/shardmesh/searchcore/pkg/errors"
)

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseTwoInts(a, b string) (int64, int64, error) {
	x, err := parseInt(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseInt(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// CombineMethod selects the fusion strategy a hybrid query's COMBINE clause
// names (spec.md §4.9).
type CombineMethod int

const (
	CombineRRF CombineMethod = iota
	CombineLinear
)

// HybridPlan is the parsed FT.HYBRID aggregation plan: one entry per
// sub-query clause, the chosen fusion method and its parameters, and the
// arrange/group/map/filter steps layered on top of the fused stream.
type HybridPlan struct {
	Combine       CombineMethod
	RRFConstant   int64
	RRFWindow     int64
	LinearWeights []float64

	Limit       int64
	Offset      int64
	CountOnly   bool
	SortBy      []SortKey
	WithCursor  bool
	CursorCount int64
	MaxIdleMS   int64
	Params      map[string]string
	TimeoutMS   int64
	Format      string
	WithScores  bool
	ExplainScore bool

	GroupBy []string
	Reduce  []ReduceClause
	Apply   []ApplyClause
	Load    []string
	LoadAll bool
	Filter  []string
}

// SortKey is one SORTBY field/direction pair.
type SortKey struct {
	Field string
	Desc  bool
}

// ReduceClause is one GROUPBY...REDUCE clause.
type ReduceClause struct {
	Func string
	Args []string
}

// ApplyClause is one APPLY expr [AS alias] clause.
type ApplyClause struct {
	Expr  string
	Alias string
}

// HybridDefaults mirrors hybrid_scoring.h's compile-time defaults.
const (
	HybridDefaultRRFConstant = fusion.DefaultRRFConstant
	HybridDefaultWindow      = fusion.DefaultRRFWindow
	HybridDefaultMaxIdleMS   = 300000
)

// ParseHybridArgs parses the optional-argument tail of an FT.HYBRID command
// (everything after the sub-query clauses) into a HybridPlan, following
// cmdparse.c's declarative, order-independent argument model. It recognises
// every optional argument spec.md §4.9 lists. maxResults caps LIMIT's count
// argument (spec.md:204); maxResults<=0 leaves it unbounded.
func ParseHybridArgs(tokens []string, maxResults int64) (*HybridPlan, error) {
	plan := &HybridPlan{
		Combine:     CombineRRF,
		RRFConstant: HybridDefaultRRFConstant,
		RRFWindow:   HybridDefaultWindow,
		MaxIdleMS:   HybridDefaultMaxIdleMS,
		Params:      make(map[string]string),
	}

	i := 0
	paramsSeen := false
	for i < len(tokens) {
		kw := strings.ToUpper(tokens[i])
		switch kw {
		case "LIMIT":
			if i+2 >= len(tokens) {
				return nil, fmt.Errorf("LIMIT requires offset and count")
			}
			off, n, err := parseTwoInts(tokens[i+1], tokens[i+2])
			if err != nil {
				return nil, apperrors.NewQueryError(apperrors.KindParseArgs, "LIMIT: %v", err)
			}
			if n < 0 {
				return nil, apperrors.NewQueryError(apperrors.KindParseArgs, "LIMIT: count must be >= 0")
			}
			if maxResults > 0 && n > maxResults {
				return nil, apperrors.NewQueryError(apperrors.KindLimit, "LIMIT: count %d exceeds maximum of %d", n, maxResults)
			}
			if off > math.MaxInt64-n {
				return nil, apperrors.NewQueryError(apperrors.KindParseArgs, "LIMIT: offset %d overflows with count %d", off, n)
			}
			plan.Offset = off
			plan.Limit = n
			plan.CountOnly = n == 0
			i += 3

		case "SORTBY":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("SORTBY requires at least one field")
			}
			i++
			for i < len(tokens) {
				if isHybridKeyword(tokens[i]) {
					break
				}
				field := tokens[i]
				i++
				desc := false
				if i < len(tokens) {
					switch strings.ToUpper(tokens[i]) {
					case "ASC":
						i++
					case "DESC":
						desc = true
						i++
					}
				}
				plan.SortBy = append(plan.SortBy, SortKey{Field: field, Desc: desc})
			}

		case "WITHCURSOR":
			plan.WithCursor = true
			i++
		withCursorLoop:
			for i < len(tokens) {
				switch strings.ToUpper(tokens[i]) {
				case "COUNT":
					if i+1 >= len(tokens) {
						return nil, fmt.Errorf("WITHCURSOR COUNT requires a value")
					}
					n, err := parseInt(tokens[i+1])
					if err != nil {
						return nil, fmt.Errorf("WITHCURSOR COUNT: %w", err)
					}
					plan.CursorCount = n
					i += 2
				case "MAXIDLE":
					if i+1 >= len(tokens) {
						return nil, fmt.Errorf("WITHCURSOR MAXIDLE requires a value")
					}
					n, err := parseInt(tokens[i+1])
					if err != nil {
						return nil, fmt.Errorf("WITHCURSOR MAXIDLE: %w", err)
					}
					if n > HybridDefaultMaxIdleMS {
						n = HybridDefaultMaxIdleMS
					}
					plan.MaxIdleMS = n
					i += 2
				default:
					break withCursorLoop
				}
			}

		case "PARAMS":
			if paramsSeen {
				return nil, fmt.Errorf("PARAMS may only be specified once")
			}
			paramsSeen = true
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("PARAMS requires a count")
			}
			n, err := parseInt(tokens[i+1])
			if err != nil {
				return nil, fmt.Errorf("PARAMS: %w", err)
			}
			if n%2 != 0 || n < 0 {
				return nil, fmt.Errorf("PARAMS count must be a non-negative even number")
			}
			start := i + 2
			if start+int(n) > len(tokens) {
				return nil, fmt.Errorf("PARAMS: not enough key/value tokens")
			}
			for j := 0; j < int(n); j += 2 {
				plan.Params[tokens[start+j]] = tokens[start+j+1]
			}
			i = start + int(n)

		case "TIMEOUT":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("TIMEOUT requires a value")
			}
			n, err := parseInt(tokens[i+1])
			if err != nil {
				return nil, fmt.Errorf("TIMEOUT: %w", err)
			}
			plan.TimeoutMS = n
			i += 2

		case "FORMAT":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("FORMAT requires a value")
			}
			val := strings.ToUpper(tokens[i+1])
			if val != "STRING" && val != "EXPAND" {
				return nil, fmt.Errorf("FORMAT: unknown value %q", tokens[i+1])
			}
			plan.Format = val
			i += 2

		case "GROUPBY":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("GROUPBY requires a count")
			}
			n, err := parseInt(tokens[i+1])
			if err != nil {
				return nil, fmt.Errorf("GROUPBY: %w", err)
			}
			start := i + 2
			if start+int(n) > len(tokens) {
				return nil, fmt.Errorf("GROUPBY: not enough property tokens")
			}
			plan.GroupBy = append(plan.GroupBy, tokens[start:start+int(n)]...)
			i = start + int(n)
			for i < len(tokens) && strings.ToUpper(tokens[i]) == "REDUCE" {
				if i+2 >= len(tokens) {
					return nil, fmt.Errorf("REDUCE requires a function and arg count")
				}
				fn := tokens[i+1]
				argc, err := parseInt(tokens[i+2])
				if err != nil {
					return nil, fmt.Errorf("REDUCE: %w", err)
				}
				argStart := i + 3
				if argStart+int(argc) > len(tokens) {
					return nil, fmt.Errorf("REDUCE %s: not enough argument tokens", fn)
				}
				plan.Reduce = append(plan.Reduce, ReduceClause{Func: fn, Args: append([]string{}, tokens[argStart:argStart+int(argc)]...)})
				i = argStart + int(argc)
			}

		case "APPLY":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("APPLY requires an expression")
			}
			expr := tokens[i+1]
			i += 2
			alias := ""
			if i+1 < len(tokens) && strings.ToUpper(tokens[i]) == "AS" {
				alias = tokens[i+1]
				i += 2
			}
			plan.Apply = append(plan.Apply, ApplyClause{Expr: expr, Alias: alias})

		case "LOAD":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("LOAD requires a count or *")
			}
			if tokens[i+1] == "*" {
				plan.LoadAll = true
				i += 2
				continue
			}
			n, err := parseInt(tokens[i+1])
			if err != nil {
				return nil, fmt.Errorf("LOAD: %w", err)
			}
			start := i + 2
			if start+int(n) > len(tokens) {
				return nil, fmt.Errorf("LOAD: not enough field tokens")
			}
			plan.Load = append(plan.Load, tokens[start:start+int(n)]...)
			i = start + int(n)

		case "FILTER":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("FILTER requires an expression")
			}
			plan.Filter = append(plan.Filter, tokens[i+1])
			i += 2

		case "WITHSCORES":
			plan.WithScores = true
			i++
		case "EXPLAINSCORE":
			plan.ExplainScore = true
			i++
		case "_NUM_SSTRING", "_INDEX_PREFIXES":
			i++ // protocol-level flags, no payload to capture at this layer

		case "COMBINE":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("COMBINE requires a method")
			}
			method := strings.ToUpper(tokens[i+1])
			i += 2
			switch method {
			case "RRF":
				plan.Combine = CombineRRF
			rrfLoop:
				for i < len(tokens) {
					switch strings.ToUpper(tokens[i]) {
					case "CONSTANT":
						n, err := parseInt(tokens[i+1])
						if err != nil {
							return nil, fmt.Errorf("RRF CONSTANT: %w", err)
						}
						if n < 1 {
							return nil, fmt.Errorf("RRF CONSTANT must be >= 1")
						}
						plan.RRFConstant = n
						i += 2
					case "WINDOW":
						n, err := parseInt(tokens[i+1])
						if err != nil {
							return nil, fmt.Errorf("RRF WINDOW: %w", err)
						}
						if n < 1 {
							return nil, fmt.Errorf("RRF WINDOW must be >= 1")
						}
						plan.RRFWindow = n
						i += 2
					default:
						break rrfLoop
					}
				}
			case "LINEAR":
				plan.Combine = CombineLinear
				var alpha, beta float64
				var haveAlpha, haveBeta bool
			linearLoop:
				for i < len(tokens) {
					switch strings.ToUpper(tokens[i]) {
					case "ALPHA":
						a, err := parseFloat(tokens[i+1])
						if err != nil {
							return nil, fmt.Errorf("LINEAR ALPHA: %w", err)
						}
						alpha = a
						haveAlpha = true
						i += 2
					case "BETA":
						b, err := parseFloat(tokens[i+1])
						if err != nil {
							return nil, fmt.Errorf("LINEAR BETA: %w", err)
						}
						beta = b
						haveBeta = true
						i += 2
					default:
						break linearLoop
					}
				}
				if !haveAlpha {
					return nil, fmt.Errorf("LINEAR missing ALPHA")
				}
				if !haveBeta {
					return nil, fmt.Errorf("LINEAR missing BETA")
				}
				plan.LinearWeights = []float64{alpha, beta}
			default:
				return nil, fmt.Errorf("COMBINE: unknown method %q", tokens[i-1])
			}

		default:
			return nil, fmt.Errorf("unrecognized argument %q", tokens[i])
		}
	}
	return plan, nil
}

var hybridKeywords = []string{
	"LIMIT", "SORTBY", "WITHCURSOR", "PARAMS", "TIMEOUT", "FORMAT",
	"GROUPBY", "APPLY", "LOAD", "FILTER", "WITHSCORES", "EXPLAINSCORE",
	"_NUM_SSTRING", "_INDEX_PREFIXES", "COMBINE",
}

func isHybridKeyword(tok string) bool {
	u := strings.ToUpper(tok)
	for _, k := range hybridKeywords {
		if u == k {
			return true
		}
	}
	return false
}
