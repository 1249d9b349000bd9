package indexer

import "sync/atomic"

// refBlock is the shared control block behind a StrongRef/WeakRef pair: a
// pointer to the referenced value plus an atomic refcount, adapted from the
// original engine's index-spec reference counting (original_source's
// StrongRef/WeakRef pair referenced from cluster.h/engine lifecycle) so a
// spec that's been dropped from the registry can still fail a promotion
// instead of being silently kept alive by the GC.
type refBlock[T any] struct {
	value T
	count atomic.Int32
}

// StrongRef keeps its target alive: Get always returns the value.
type StrongRef[T any] struct {
	block *refBlock[T]
}

// WeakRef observes a target without keeping it alive: Promote can fail once
// every StrongRef has been released.
type WeakRef[T any] struct {
	block *refBlock[T]
}

// NewStrongRef wraps value in a fresh refcounted block with an initial count
// of one.
func NewStrongRef[T any](value T) StrongRef[T] {
	b := &refBlock[T]{value: value}
	b.count.Store(1)
	return StrongRef[T]{block: b}
}

// Clone increments the refcount and returns a new StrongRef sharing the same
// block.
func (r StrongRef[T]) Clone() StrongRef[T] {
	r.block.count.Add(1)
	return StrongRef[T]{block: r.block}
}

// Valid reports whether r points at a block; a zero-value StrongRef has
// Valid()==false. It does not look at the refcount.
func (r StrongRef[T]) Valid() bool {
	return r.block != nil
}

// Get returns the referenced value. Callers must check Valid first.
func (r StrongRef[T]) Get() T {
	return r.block.value
}

// Release decrements the refcount. The caller must not use r after calling
// Release.
func (r StrongRef[T]) Release() {
	if r.block == nil {
		return
	}
	r.block.count.Add(-1)
}

// Weak derives a WeakRef observing the same block, without affecting the
// refcount.
func (r StrongRef[T]) Weak() WeakRef[T] {
	return WeakRef[T]{block: r.block}
}

// Promote attempts to obtain a StrongRef from w. It fails once the
// underlying block's refcount has already reached zero, the race spec.md
// calls out explicitly: a topology update can drop the last StrongRef to an
// IndexSpec between a fan-out dispatch and the shard goroutine's attempt to
// use it.
func (w WeakRef[T]) Promote() (StrongRef[T], bool) {
	if w.block == nil {
		var zero StrongRef[T]
		return zero, false
	}
	for {
		cur := w.block.count.Load()
		if cur <= 0 {
			var zero StrongRef[T]
			return zero, false
		}
		if w.block.count.CompareAndSwap(cur, cur+1) {
			return StrongRef[T]{block: w.block}, true
		}
	}
}

// Valid reports whether w still points at a block (not whether it can still
// be promoted — use Promote for that).
func (w WeakRef[T]) Valid() bool {
	return w.block != nil
}
