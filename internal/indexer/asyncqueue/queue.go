// Package asyncqueue implements the blocking-queue indexer spec.md §4.10
// describes: documents are submitted per index spec, deduplicated by key,
// and drained in batches by a single dedicated worker goroutine — the Go
// mapping of the original's condvar-guarded pending/active swap, using
// sync.Cond the way the teacher's concurrency-heavy packages already favor
// explicit synchronization primitives over channel-only designs.
package asyncqueue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Document is one unit of indexing work.
type Document struct {
	Key   string
	Title string
	Body  string
}

// IndexFunc performs the actual indexing for one spec's batch.
type IndexFunc func(spec string, docs []Document) error

// specDocQueue holds one index spec's pending (not yet claimed by the
// worker) and active (currently being indexed) document sets, keyed by
// document key so re-submission collapses into the existing entry.
type specDocQueue struct {
	pending map[string]Document
	active  map[string]Document
}

func newSpecDocQueue() *specDocQueue {
	return &specDocQueue{pending: make(map[string]Document), active: make(map[string]Document)}
}

// Queue is the global AsyncIndexQueue: a vector of specs with pending work,
// guarded by a mutex/condvar, drained by one worker goroutine started via
// Run.
type Queue struct {
	mu           sync.Mutex
	cond         *sync.Cond
	specs        map[string]*specDocQueue
	pendingSpecs map[string]struct{}
	paused       bool
	closed       bool

	indexFn   IndexFunc
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// New builds a Queue that calls indexFn for every drained batch. batchSize
// is the pending-count threshold that wakes the worker early; interval is
// the condvar's periodic wake-up even with no signal (spec.md §4.10: "wait
// on condvar with interval timeout").
func New(indexFn IndexFunc, batchSize int, interval time.Duration) *Queue {
	if batchSize < 1 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	q := &Queue{
		specs:        make(map[string]*specDocQueue),
		pendingSpecs: make(map[string]struct{}),
		indexFn:      indexFn,
		batchSize:    batchSize,
		interval:     interval,
		logger:       slog.Default().With("component", "async-index-queue"),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Submit enqueues doc under spec, deduping by Key within that spec's
// pending set, and wakes the worker once the spec's pending size reaches
// batchSize.
func (q *Queue) Submit(spec string, doc Document) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.specs[spec]
	if !ok {
		sq = newSpecDocQueue()
		q.specs[spec] = sq
	}
	sq.pending[doc.Key] = doc
	wasPending := false
	if _, ok := q.pendingSpecs[spec]; ok {
		wasPending = true
	}
	if !wasPending {
		q.pendingSpecs[spec] = struct{}{}
	}
	if len(sq.pending) >= q.batchSize {
		q.cond.Signal()
	}
}

// Pause stops the worker from claiming new batches until Resume is called;
// batches already claimed still finish.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume re-enables batch claiming and wakes the worker immediately.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PendingSpecCount reports how many specs currently have unclaimed pending
// documents.
func (q *Queue) PendingSpecCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pendingSpecs)
}

// PendingDocCount reports how many documents are pending for spec.
func (q *Queue) PendingDocCount(spec string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq, ok := q.specs[spec]
	if !ok {
		return 0
	}
	return len(sq.pending)
}

// Run drives the worker loop until ctx is cancelled, then returns after
// finishing any in-progress batch. It is meant to be called from the
// dedicated async-index goroutine (spec.md §5: "the async-index worker is
// one dedicated thread").
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.closed = true
				q.mu.Unlock()
				q.cond.Broadcast()
				return
			case <-ticker.C:
				q.cond.Broadcast()
			}
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for !q.closed && (q.paused || len(q.pendingSpecs) == 0) {
			q.cond.Wait()
		}
		if q.closed && len(q.pendingSpecs) == 0 {
			return
		}
		if q.paused {
			continue
		}
		spec, docs := q.claimLargest()
		if spec == "" {
			continue
		}
		q.mu.Unlock()
		err := q.indexFn(spec, docs)
		q.mu.Lock()
		if err != nil {
			q.logger.Error("indexing batch failed", "spec", spec, "docs", len(docs), "error", err)
		}
		q.finishActive(spec)
	}
}

// claimLargest sorts the specs with pending work by ascending pending size
// and claims the tail (largest) one, swapping its pending set into active
// and clearing pending — the original engine's "smallest-first sort, pick
// the tail" selection (spec.md §4.10). Caller must hold q.mu.
func (q *Queue) claimLargest() (string, []Document) {
	if len(q.pendingSpecs) == 0 {
		return "", nil
	}
	type entry struct {
		spec string
		size int
	}
	entries := make([]entry, 0, len(q.pendingSpecs))
	for spec := range q.pendingSpecs {
		entries = append(entries, entry{spec: spec, size: len(q.specs[spec].pending)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].size != entries[j].size {
			return entries[i].size < entries[j].size
		}
		return entries[i].spec < entries[j].spec
	})
	chosen := entries[len(entries)-1].spec
	sq := q.specs[chosen]
	sq.active = sq.pending
	sq.pending = make(map[string]Document)
	delete(q.pendingSpecs, chosen)

	docs := make([]Document, 0, len(sq.active))
	for _, d := range sq.active {
		docs = append(docs, d)
	}
	return chosen, docs
}

// finishActive clears spec's active set and, if new work arrived while it
// was indexing, re-marks the spec pending. Caller must hold q.mu.
func (q *Queue) finishActive(spec string) {
	sq, ok := q.specs[spec]
	if !ok {
		return
	}
	sq.active = make(map[string]Document)
	if len(sq.pending) > 0 {
		q.pendingSpecs[spec] = struct{}{}
	}
}
