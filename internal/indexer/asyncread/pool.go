// Package asyncread implements the three-stage FIFO pipeline that overlaps
// document-metadata disk reads with posting-list iteration: iteratorResults
// holds items not yet submitted, pendingResults holds submitted items in
// submission order, and PopReadyResult releases only the front of
// pendingResults once it completes.
//
// PopReadyResult always emits results in submission order, even when the
// disk backend completes reads out of order. A naive pipeline that simply
// replays completions in whatever order the backend reports them only gets
// FIFO output if the backend itself never reorders. This implementation
// instead marks an out-of-order completion ready in place at its
// pendingResults slot and only releases the front of that list once it is
// marked ready, so a completion that arrives early waits for the
// completions ahead of it.
package asyncread

import (
	"container/list"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer/index"
)

// IndexResult is the payload carried through the pipeline: a posting plus an
// (initially nil) metadata handle that the disk backend attaches once the
// corresponding async read completes.
type IndexResult struct {
	Posting index.Posting
	Meta    any
}

// clone returns a deep-enough copy for hand-off into the async stage — the
// Positions slice is copied so the source iterator can keep reusing its own
// backing array.
func (r *IndexResult) clone() *IndexResult {
	cp := *r
	if r.Posting.Positions != nil {
		cp.Posting.Positions = append([]int(nil), r.Posting.Positions...)
	}
	return &cp
}

// ReadyItem is one completed disk read, matching AsyncReadResult in the
// original: UserData correlates it back to the AddAsyncRead call, Meta holds
// whatever document-metadata handle the backend fetched.
type ReadyItem struct {
	UserData uint64
	Meta     any
}

// DiskReader abstracts the storage-layer async-read facility the backend
// provides. Implementations are expected to be backed by a small fixed
// worker-goroutine pool.
type DiskReader interface {
	// AddAsyncRead submits docID for a metadata fetch, tagged with an
	// opaque userData the caller uses to correlate the eventual result. It
	// returns false if the backend's in-flight capacity is exhausted.
	AddAsyncRead(docID uint32, userData uint64) bool
	// PollAsyncReads blocks up to timeout (or until expiration, if
	// non-zero) for completions, returning the ready and failed items plus
	// the number of reads still in flight at the backend after this poll.
	PollAsyncReads(timeout time.Duration, expiration time.Time) (ready []ReadyItem, failed []uint64, pendingCount int)
	// Close releases the backend pool.
	Close()
}

type pendingNode struct {
	userData uint64
	result   *IndexResult
	ready    bool
}

// Pool is the bounded async-read pipeline: iteratorResults (buffered,
// awaiting a free slot) -> pendingResults (submitted, in submission order,
// some possibly already completed but not yet popped) -> PopReadyResult
// releases only the head once it is marked ready. Capacity is bounded by
// poolSize: a completed-but-unpopped item still occupies its slot, so
// Refill cannot submit past it until it is popped.
type Pool struct {
	disk     DiskReader
	poolSize int

	iteratorResults *list.List // of *IndexResult, not yet submitted
	pendingResults  *list.List // of *pendingNode, submission order
	pendingByID     map[uint64]*list.Element

	nextUserData uint64
}

// NewPool constructs a Pool over disk with the given in-flight capacity. A
// poolSize of 1 degenerates to synchronous disk iteration.
func NewPool(disk DiskReader, poolSize int) *Pool {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Pool{
		disk:            disk,
		poolSize:        poolSize,
		iteratorResults: list.New(),
		pendingResults:  list.New(),
		pendingByID:     make(map[uint64]*list.Element),
	}
}

// Enqueue appends a deep copy of result to iteratorResults, to be submitted
// by a later Refill call once the pool has room.
func (p *Pool) Enqueue(result *IndexResult) {
	p.iteratorResults.PushBack(result.clone())
}

// Refill moves items from iteratorResults into pendingResults, submitting
// each via AddAsyncRead, until the pool is full or iteratorResults is empty.
// It never reorders: items leave iteratorResults head-first and are
// appended to pendingResults tail-first.
func (p *Pool) Refill() {
	for p.pendingResults.Len() < p.poolSize {
		front := p.iteratorResults.Front()
		if front == nil {
			return
		}
		result := front.Value.(*IndexResult)
		userData := p.nextUserData
		if !p.disk.AddAsyncRead(result.Posting.DocID, userData) {
			return // backend full; leave the head in place, retry next Refill
		}
		p.nextUserData++
		p.iteratorResults.Remove(front)
		elem := p.pendingResults.PushBack(&pendingNode{userData: userData, result: result})
		p.pendingByID[userData] = elem
	}
}

// Poll drains the disk backend, marking the corresponding pendingResults
// slots ready in place (preserving their submission-order position) and
// attaching each completion's metadata. Failed reads (not-found or disk
// error, treated identically) drop their node from pendingResults
// immediately, with no signal surfaced to the caller. Returns the backend's
// own reported in-flight count.
func (p *Pool) Poll(timeout time.Duration, expiration time.Time) int {
	ready, failed, pendingCount := p.disk.PollAsyncReads(timeout, expiration)
	for _, userData := range failed {
		p.dropPending(userData)
	}
	for _, r := range ready {
		if elem, ok := p.pendingByID[r.UserData]; ok {
			node := elem.Value.(*pendingNode)
			node.ready = true
			node.result.Meta = r.Meta
		}
	}
	return pendingCount
}

func (p *Pool) dropPending(userData uint64) {
	elem, ok := p.pendingByID[userData]
	if !ok {
		return
	}
	p.pendingResults.Remove(elem)
	delete(p.pendingByID, userData)
}

// PopReadyResult returns the IndexResult at the front of pendingResults once
// it is marked ready, transferring ownership to the caller and removing its
// node. If the front is still awaiting completion (even when later slots
// have already completed), PopReadyResult returns (nil, false) — this is
// what gives the pipeline its FIFO guarantee under out-of-order disk
// completion.
func (p *Pool) PopReadyResult() (*IndexResult, bool) {
	front := p.pendingResults.Front()
	if front == nil {
		return nil, false
	}
	node := front.Value.(*pendingNode)
	if !node.ready {
		return nil, false
	}
	p.pendingResults.Remove(front)
	delete(p.pendingByID, node.userData)
	return node.result, true
}

// IsComplete reports whether the pipeline has fully drained: the source
// iterator is at EOF, nothing is buffered awaiting submission, nothing is
// in flight at the backend, and every pending slot has been popped.
func (p *Pool) IsComplete(iteratorAtEOF bool, pendingCount int) bool {
	return iteratorAtEOF &&
		pendingCount == 0 &&
		p.pendingResults.Len() == 0 &&
		p.iteratorResults.Len() == 0
}

// PendingCount reports how many submission slots currently occupy
// pendingResults (ready or not); it caps at poolSize by construction.
func (p *Pool) PendingCount() int {
	return p.pendingResults.Len()
}

// Close releases the backend disk pool.
func (p *Pool) Close() {
	p.disk.Close()
}
