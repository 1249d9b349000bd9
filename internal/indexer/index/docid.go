package index

import "sync"

// DocIDMap is the bijection between a shard's external string document keys
// and the internal uint32 doc-ids the posting-list block format requires
// (SPEC_FULL.md's doc-id generalization: delta-encoded varint postings only
// make sense over an ordered numeric domain, so each shard interns its
// document keys to small incrementing integers, the same trick the original
// engine's t_docId plays, while the public API still speaks string keys).
type DocIDMap struct {
	mu      sync.RWMutex
	toID    map[string]uint32
	toKey   []string // index i holds the key for doc-id i
	nextID  uint32
}

// NewDocIDMap creates an empty bijection.
func NewDocIDMap() *DocIDMap {
	return &DocIDMap{toID: make(map[string]uint32)}
}

// Assign returns the existing doc-id for key, or allocates the next
// incrementing one.
func (d *DocIDMap) Assign(key string) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.toID[key]; ok {
		return id
	}
	id := d.nextID
	d.nextID++
	d.toID[key] = id
	d.toKey = append(d.toKey, key)
	return id
}

// Lookup returns the doc-id for key without allocating one.
func (d *DocIDMap) Lookup(key string) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.toID[key]
	return id, ok
}

// Key returns the external string key for a doc-id.
func (d *DocIDMap) Key(id uint32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.toKey) {
		return "", false
	}
	return d.toKey[id], true
}

// Restore re-establishes a (key, id) pair recovered from a segment's doc
// metadata sidecar after a process restart. It is a no-op if key is already
// known, and otherwise pads toKey so id resolves via Key and advances nextID
// past id so future Assign calls never reuse it.
func (d *DocIDMap) Restore(key string, id uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.toID[key]; ok {
		return
	}
	d.toID[key] = id
	for uint32(len(d.toKey)) <= id {
		d.toKey = append(d.toKey, "")
	}
	d.toKey[id] = key
	if id >= d.nextID {
		d.nextID = id + 1
	}
}

// Len returns the number of distinct keys interned so far.
func (d *DocIDMap) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.toKey)
}
