package index

import (
	"sort"
	"sync"

	"github.com/shardmesh/searchcore/internal/indexer/tokenizer"
)

// MemoryIndex is a concurrency-safe in-memory inverted index. Terms map to
// per-document Postings keyed by the shard's interned uint32 doc-id
// (DocIDMap), and the entire structure can be snapshotted and reset when
// flushed to a segment.
type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]map[uint32]*Posting
	docIDs   *DocIDMap
	docCount int
	size     int64
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:  make(map[string]map[uint32]*Posting),
		docIDs: NewDocIDMap(),
	}
}

// AddDocument tokenises the document and upserts term->posting entries into
// the index, interning docKey to a local uint32 doc-id.
func (m *MemoryIndex) AddDocument(docKey string, title string, body string) uint32 {
	fullText := title + " " + body
	tokens := tokenizer.Tokenize(fullText)

	docID := m.docIDs.Assign(docKey)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Frequency: 0,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[uint32]*Posting)
		}
		m.index[term][docID] = posting
		m.size += int64(len(term) + len(docKey) + len(posting.Positions)*8 + 64)
	}
	m.docCount++
	return docID
}

// DocKey resolves a local doc-id back to its external string key.
func (m *MemoryIndex) DocKey(docID uint32) (string, bool) {
	return m.docIDs.Key(docID)
}

// RestoreDoc re-establishes a previously interned (key, id) pair recovered
// from an on-disk segment, so DocKey keeps resolving doc-ids assigned before
// a restart. See DocIDMap.Restore.
func (m *MemoryIndex) RestoreDoc(key string, id uint32) {
	m.docIDs.Restore(key, id)
}

// Search returns the PostingList for the given term, sorted by DocID.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Snapshot returns a sorted copy of all term entries suitable for flushing
// to a segment.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Size returns the estimated heap size of the index in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// DocCount returns the number of documents in the index.
func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

// Reset clears the entire index, releasing all postings and resetting
// counters. The DocIDMap is intentionally NOT reset: doc-ids must stay
// stable across a flush so on-disk segments and the live index never
// disagree about a key's identity.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[uint32]*Posting)
	m.docCount = 0
	m.size = 0
}
