// Package diag tracks queries and cursors that are currently blocked
// (executing or idling on a cursor) so an operator can inspect them, the Go
// mapping of the original's BlockedQueries doubly-linked lists
// (original_source/src/info/info_redis/types/blocked_queries.c). The C
// version reads the lists from a crash signal handler, which runs
// single-threaded with the world stopped; Go has no equivalent of that, so
// this package guards the lists with a mutex instead and expects to be read
// from an ordinary HTTP handler.
package diag

import (
	"container/list"
	"sync"
	"time"
)

// BlockedQuery describes one in-flight query, keyed by the index spec it
// runs against.
type BlockedQuery struct {
	Spec  string
	Query string
	Start time.Time
}

// BlockedCursor describes one idle server-side cursor awaiting its next
// fetch.
type BlockedCursor struct {
	Spec     string
	CursorID uint64
	Count    int
	Start    time.Time
}

// Registry is the process-wide set of active queries and cursors, the Go
// counterpart of BlockedQueries. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	queries *list.List
	cursors *list.List
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{queries: list.New(), cursors: list.New()}
}

// QueryHandle is returned by AddQuery and must be passed to RemoveQuery once
// the query completes.
type QueryHandle struct {
	elem *list.Element
}

// CursorHandle is returned by AddCursor and must be passed to RemoveCursor
// once the cursor is freed or exhausted.
type CursorHandle struct {
	elem *list.Element
}

// AddQuery registers a query as blocked/in-flight against spec, returning a
// handle to remove it when it completes.
func (r *Registry) AddQuery(spec, query string) QueryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem := r.queries.PushBack(&BlockedQuery{Spec: spec, Query: query, Start: time.Now()})
	return QueryHandle{elem: elem}
}

// RemoveQuery unregisters a query previously added with AddQuery.
func (r *Registry) RemoveQuery(h QueryHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries.Remove(h.elem)
}

// AddCursor registers an idle cursor, returning a handle to remove it when
// the cursor is freed.
func (r *Registry) AddCursor(spec string, cursorID uint64, count int) CursorHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem := r.cursors.PushBack(&BlockedCursor{Spec: spec, CursorID: cursorID, Count: count, Start: time.Now()})
	return CursorHandle{elem: elem}
}

// RemoveCursor unregisters a cursor previously added with AddCursor.
func (r *Registry) RemoveCursor(h CursorHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors.Remove(h.elem)
}

// Snapshot is a point-in-time copy of the registry contents, safe to
// serialize or log after the mutex is released.
type Snapshot struct {
	Queries []BlockedQuery
	Cursors []BlockedCursor
}

// Snapshot copies out every currently-registered query and cursor, oldest
// first: entries are appended on registration and copied front-to-back, so
// each slice is in insertion order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var snap Snapshot
	for e := r.queries.Front(); e != nil; e = e.Next() {
		snap.Queries = append(snap.Queries, *e.Value.(*BlockedQuery))
	}
	for e := r.cursors.Front(); e != nil; e = e.Next() {
		snap.Cursors = append(snap.Cursors, *e.Value.(*BlockedCursor))
	}
	return snap
}

// Counts reports the number of active queries and cursors without copying
// their contents.
func (r *Registry) Counts() (queries, cursors int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries.Len(), r.cursors.Len()
}
