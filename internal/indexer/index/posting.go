// Package index defines the in-memory inverted-index data structures used by
// the indexer: Posting/PostingList, the delta-encoded varint Block format
// for on-disk segments, forward-only decoding iterators, and a concurrent
// MemoryIndex supporting add/search/snapshot/reset. Document identity is
// interned to a per-shard uint32 via DocIDMap so that posting-list blocks
// can delta-encode doc-ids (see docid.go).
package index

// Posting records a single document's occurrence data for a term.
type Posting struct {
	DocID     uint32
	Frequency int
	Positions []int
}

// PostingList is a slice of Posting entries for one term, ordered by
// ascending DocID.
type PostingList []Posting

// TermEntry pairs a term string with its PostingList, used when
// snapshotting the memory index for segment flushing.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocStats holds per-document statistics used for relevance scoring.
type DocStats struct {
	DocID    uint32
	DocLen   int
	TermFreq int
}

// Block is one posting-list block: a first doc-id plus a contiguous
// varint-encoded byte stream of (delta-doc-id, frequency, position-count,
// positions...) records, decodable forward-only.
type Block struct {
	FirstDocID uint32
	Data       []byte
}

// EncodeBlock delta-encodes postings (which must already be sorted by
// ascending DocID) into a single Block.
func EncodeBlock(postings PostingList) Block {
	if len(postings) == 0 {
		return Block{}
	}
	var buf []byte
	prev := postings[0].DocID
	for i, p := range postings {
		var delta uint64
		if i > 0 {
			delta = uint64(p.DocID - prev)
		}
		buf = appendVarint(buf, delta)
		buf = appendVarint(buf, uint64(p.Frequency))
		buf = appendVarint(buf, uint64(len(p.Positions)))
		lastPos := 0
		for _, pos := range p.Positions {
			buf = appendVarint(buf, uint64(pos-lastPos))
			lastPos = pos
		}
		prev = p.DocID
	}
	return Block{FirstDocID: postings[0].DocID, Data: buf}
}

// DecodeBlock reverses EncodeBlock, reconstructing the full PostingList.
// Decoding is forward-only: random access is block-granular, so callers
// needing SkipTo within a block must
// decode from the start.
func DecodeBlock(b Block) PostingList {
	if len(b.Data) == 0 {
		return nil
	}
	var out PostingList
	pos := 0
	docID := b.FirstDocID
	first := true
	for pos < len(b.Data) {
		var delta uint64
		delta, pos = readVarint(b.Data, pos)
		if first {
			first = false
		} else {
			docID += uint32(delta)
		}
		var freq uint64
		freq, pos = readVarint(b.Data, pos)
		var numPos uint64
		numPos, pos = readVarint(b.Data, pos)
		positions := make([]int, 0, numPos)
		lastPos := 0
		for i := uint64(0); i < numPos; i++ {
			var d uint64
			d, pos = readVarint(b.Data, pos)
			lastPos += int(d)
			positions = append(positions, lastPos)
		}
		out = append(out, Posting{DocID: docID, Frequency: int(freq), Positions: positions})
	}
	return out
}
