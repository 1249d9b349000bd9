package pipeline

import (
	"context"
	"sync"
	"time"
)

// Cursor parks a live chain between client reads, spec.md §4.8: "a cursor
// wraps a chain and persists its live state between client reads. Each
// read returns up to chunkSize results and advances; idle cursors are
// reaped after maxIdle."
type Cursor struct {
	ID         uint64
	chain      Processor
	ctx        *QueryContext
	chunkSize  int
	maxIdle    time.Duration
	mu         sync.Mutex
	lastAccess time.Time
	closed     bool
	diagToken  any
}

// Read pulls up to chunkSize more results. done is true once the chain is
// exhausted (or ended in error/timeout) and the cursor has been consumed;
// the caller should then call Close.
func (c *Cursor) Read() (results []*SearchResult, done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAccess = time.Now()
	if c.closed {
		return nil, true, nil
	}
	for len(results) < c.chunkSize {
		status, res := c.chain.Next(c.ctx)
		switch status {
		case StatusOK:
			results = append(results, res)
		case StatusEOF:
			return results, true, nil
		case StatusTimedOut:
			final := c.ctx.FinalStatus(status)
			if final == StatusError {
				return results, true, c.ctx.Err
			}
			return results, true, nil
		case StatusError:
			return results, true, c.ctx.Err
		case StatusPaused:
			return results, false, nil
		default:
			return results, true, nil
		}
	}
	return results, false, nil
}

// Close releases the cursor's chain. Safe to call more than once.
func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.chain.Free()
}

func (c *Cursor) idleFor(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastAccess)
}

// CursorTable is the cursor registry spec.md §4.8 describes: opaque-id
// lookup plus an idle reaper.
type CursorTable struct {
	mu             sync.Mutex
	cursors        map[uint64]*Cursor
	nextID         uint64
	defaultMaxIdle time.Duration
	onOpen         func(cursorID uint64, chunkSize int) any
	onClose        func(token any)
}

// NewCursorTable builds an empty registry. defaultMaxIdle is used when a
// cursor is registered with maxIdle <= 0 ("0 meaning use default").
func NewCursorTable(defaultMaxIdle time.Duration) *CursorTable {
	return &CursorTable{cursors: make(map[uint64]*Cursor), defaultMaxIdle: defaultMaxIdle}
}

// SetObservers wires optional open/close callbacks an external registry
// (e.g. internal/diag) can use to track live cursors without this package
// depending on that registry's types. onOpen's return value is passed back
// to onClose unchanged when the cursor is later removed or reaped.
func (t *CursorTable) SetObservers(onOpen func(cursorID uint64, chunkSize int) any, onClose func(token any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = onOpen
	t.onClose = onClose
}

// Register parks chain under a fresh cursor id.
func (t *CursorTable) Register(chain Processor, ctx *QueryContext, chunkSize int, maxIdle time.Duration) *Cursor {
	t.mu.Lock()
	if maxIdle <= 0 {
		maxIdle = t.defaultMaxIdle
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}
	t.nextID++
	c := &Cursor{
		ID:         t.nextID,
		chain:      chain,
		ctx:        ctx,
		chunkSize:  chunkSize,
		maxIdle:    maxIdle,
		lastAccess: time.Now(),
	}
	t.cursors[c.ID] = c
	onOpen := t.onOpen
	t.mu.Unlock()
	if onOpen != nil {
		c.diagToken = onOpen(c.ID, chunkSize)
	}
	return c
}

// Get looks up a cursor by id.
func (t *CursorTable) Get(id uint64) (*Cursor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cursors[id]
	return c, ok
}

// Remove unregisters and closes the cursor with the given id, if present.
func (t *CursorTable) Remove(id uint64) {
	t.mu.Lock()
	c, ok := t.cursors[id]
	if ok {
		delete(t.cursors, id)
	}
	onClose := t.onClose
	t.mu.Unlock()
	if ok {
		c.Close()
		if onClose != nil {
			onClose(c.diagToken)
		}
	}
}

// ReapIdle closes and removes every cursor whose idle time exceeds its
// maxIdle as of now, returning how many were reaped.
func (t *CursorTable) ReapIdle(now time.Time) int {
	t.mu.Lock()
	var expired []*Cursor
	for id, c := range t.cursors {
		if c.idleFor(now) > c.maxIdle {
			expired = append(expired, c)
			delete(t.cursors, id)
		}
	}
	onClose := t.onClose
	t.mu.Unlock()
	for _, c := range expired {
		c.Close()
		if onClose != nil {
			onClose(c.diagToken)
		}
	}
	return len(expired)
}

// Len reports how many cursors are currently registered.
func (t *CursorTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cursors)
}

// StartReaper spawns a goroutine that calls ReapIdle every interval until
// ctx is cancelled.
func (t *CursorTable) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.ReapIdle(now)
			}
		}
	}()
}
