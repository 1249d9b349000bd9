// Package pipeline implements the pull-based result-processor chain that
// drives query execution: scan -> score -> sort -> paginate ->
// aggregate/reduce -> load -> filter. Each stage is a Processor that pulls
// from its upstream on demand, checking a shared QueryContext's deadline and
// OOM flag at every Next boundary, so a slow or aborted query unwinds
// without any stage doing unbounded work.
package pipeline

import "time"

// Status is a processor's outcome for one Next call.
type Status int

const (
	// StatusOK means res is a valid result; call Next again for more.
	StatusOK Status = iota
	// StatusEOF means the chain is exhausted; res is nil.
	StatusEOF
	// StatusTimedOut means the context deadline passed; res is nil.
	StatusTimedOut
	// StatusError means ctx.Err holds the failure; res is nil.
	StatusError
	// StatusPaused means the upstream cursor yielded control back to the
	// caller without reaching EOF (chunked cursor reads use this).
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Ok"
	case StatusEOF:
		return "Eof"
	case StatusTimedOut:
		return "TimedOut"
	case StatusError:
		return "Error"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// TimeoutPolicy governs what happens to a chain when its deadline passes.
type TimeoutPolicy int

const (
	// TimeoutReturn streams whatever results were already produced and
	// ends the chain with Eof, recording TimedOut as a sentinel flag
	// rather than an error.
	TimeoutReturn TimeoutPolicy = iota
	// TimeoutFail converts the final reply to an error once results have
	// been aggregated, unless the query is running in profile mode.
	TimeoutFail
)

// OomPolicy governs what happens when the OOM flag is set mid-query.
type OomPolicy int

const (
	// OomReturn behaves like TimeoutReturn: stream what exists, end clean.
	OomReturn OomPolicy = iota
	// OomFail converts the final reply to an error.
	OomFail
)

// QueryContext is the mutable, shared state every processor in one chain
// consults: spec.md §4.8's "{total-results, result-limit, timeout-deadline,
// oom-flag, error}".
type QueryContext struct {
	TotalResults int
	ResultLimit  int
	Deadline     time.Time
	OOM          bool
	Err          error

	TimeoutPolicy TimeoutPolicy
	OomPolicy     OomPolicy

	// TimedOut is the sentinel flag set instead of surfacing an error when
	// TimeoutPolicy is Return (spec.md §4.8).
	TimedOut bool
	// ProfileMode suppresses the Fail-policy error conversion, per spec.
	ProfileMode bool
}

// NewQueryContext builds a QueryContext with the given limit and timeout
// (zero means no deadline).
func NewQueryContext(limit int, timeout time.Duration, tp TimeoutPolicy, op OomPolicy) *QueryContext {
	qc := &QueryContext{
		ResultLimit:   limit,
		TimeoutPolicy: tp,
		OomPolicy:     op,
	}
	if timeout > 0 {
		qc.Deadline = time.Now().Add(timeout)
	}
	return qc
}

// Expired reports whether the deadline has passed. A zero Deadline never
// expires.
func (c *QueryContext) Expired() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// CheckDeadline is called at a processor's Next entry (and, for expensive
// per-row work in Scorer/Loader, before that work too): it returns
// StatusTimedOut once the deadline has passed or the OOM flag is set,
// StatusOK otherwise.
func (c *QueryContext) CheckDeadline() Status {
	if c.Expired() {
		c.TimedOut = true
		return StatusTimedOut
	}
	if c.OOM {
		return StatusTimedOut
	}
	return StatusOK
}

// FinalStatus translates a chain-ending Status through the timeout/OOM
// policy, per spec.md §4.8: under Return, a timeout never becomes an error;
// under Fail (outside profile mode), it does.
func (c *QueryContext) FinalStatus(st Status) Status {
	if st != StatusTimedOut {
		return st
	}
	policy := c.TimeoutPolicy
	if c.OOM {
		policy = TimeoutPolicy(c.OomPolicy)
	}
	if policy == TimeoutFail && !c.ProfileMode {
		if c.Err == nil {
			c.Err = ErrAggregationTimedOut
		}
		return StatusError
	}
	return StatusEOF
}

// ErrAggregationTimedOut is QueryContext.Err's default value when a Fail
// policy converts a timeout into a query error.
var ErrAggregationTimedOut = errTimedOut{}

type errTimedOut struct{}

func (errTimedOut) Error() string { return "query aggregation timed out" }

// SearchResult is one result flowing through the chain: spec.md §3's
// SearchResult record, minus the manual-lifetime bookkeeping Go's GC makes
// unnecessary.
type SearchResult struct {
	DocID    uint32
	DocKey   string
	Score    float64
	Explain  string
	Weight   float64
	Flags    uint8
	GroupKey string
	Row      Row
}

// Processor is one stage of the result chain: it pulls from its upstream
// (if any) and returns the next result, or a terminal Status once exhausted.
type Processor interface {
	// Next pulls the next result. res is valid only when status is
	// StatusOK.
	Next(ctx *QueryContext) (status Status, res *SearchResult)
	// Free releases the processor and, transitively, its upstream.
	Free()
}

// Clone returns a shallow copy of res with an independently mutable Row, the
// minimal "deep enough" copy needed when a result is handed off across an
// async boundary (mirroring asyncread.IndexResult.clone).
func (r *SearchResult) Clone() *SearchResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Row = r.Row.Clone()
	return &cp
}
