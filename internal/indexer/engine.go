package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer/asyncread"
	"github.com/shardmesh/searchcore/internal/indexer/index"
	"github.com/shardmesh/searchcore/internal/indexer/segment"
	"github.com/shardmesh/searchcore/internal/indexer/tokenizer"
	"github.com/shardmesh/searchcore/pkg/config"
	"github.com/shardmesh/searchcore/pkg/logger"
)

type Engine struct {
	memIndex     *index.MemoryIndex
	writer       *segment.Writer
	readers      []*segment.Reader
	readerMu     sync.RWMutex
	cfg          config.IndexerConfig
	logger       *slog.Logger
	docLengths   map[string]int
	docLengthsMu sync.RWMutex
	totalDocs    int64
	totalTokens  int64

	// titles holds the title of every document added since the last Flush.
	// Unlike docLengths it is not cumulative: once a document's postings are
	// written to a segment, its title is dropped from memory and must be
	// re-read from that segment's doc-meta sidecar (see titlereader.go), so a
	// large corpus never forces every title permanently into RAM.
	titles   map[string]string
	titlesMu sync.RWMutex

	// docSegment records which segment holds a flushed document's doc-meta
	// sidecar, so a title lookup knows which file to read. It is cumulative
	// and small (one filename per doc), unlike titles.
	docSegment   map[uint32]string
	docSegmentMu sync.RWMutex
}

func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex:   index.NewMemoryIndex(),
		writer:     segment.NewWriter(cfg.DataDir),
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer"),
		docLengths: make(map[string]int),
		titles:     make(map[string]string),
		docSegment: make(map[uint32]string),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

func (e *Engine) IndexDocument(docID string, title string, body string) error {
	fullText := title + " " + body
	tokens := tokenizer.Tokenize(fullText)

	e.docLengthsMu.Lock()
	e.docLengths[docID] = len(tokens)
	e.totalDocs++
	e.totalTokens += int64(len(tokens))
	e.docLengthsMu.Unlock()

	e.titlesMu.Lock()
	e.titles[docID] = title
	e.titlesMu.Unlock()

	internedID := e.memIndex.AddDocument(docID, title, body)
	e.logger.Debug("document indexed in memory",
		"doc_id", logger.DocumentKey(docID, uint64(internedID)),
		"token_count", len(tokens),
		"mem_size", e.memIndex.Size(),
	)
	if e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

func (e *Engine) Flush() error {
	snapshot := e.memIndex.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	segmentName, err := e.writer.Write(snapshot)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.readerMu.Unlock()

	docIDs := collectDocIDs(snapshot)
	metas := e.buildDocMetas(docIDs, segmentName)
	if err := segment.WriteDocMeta(e.cfg.DataDir, segmentName, metas); err != nil {
		e.logger.Error("writing doc metadata sidecar failed, titles for this segment will be unavailable",
			"segment", segmentName,
			"error", err,
		)
	}
	e.titlesMu.Lock()
	for _, meta := range metas {
		delete(e.titles, meta.DocKey)
	}
	e.titlesMu.Unlock()

	e.memIndex.Reset()
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", len(e.readers),
	)
	return nil
}

// collectDocIDs returns the distinct doc-ids referenced by entries, in no
// particular order.
func collectDocIDs(entries []index.TermEntry) []uint32 {
	seen := make(map[uint32]struct{})
	ids := make([]uint32, 0, len(entries))
	for _, entry := range entries {
		for _, p := range entry.Postings {
			if _, ok := seen[p.DocID]; !ok {
				seen[p.DocID] = struct{}{}
				ids = append(ids, p.DocID)
			}
		}
	}
	return ids
}

// buildDocMetas assembles the sidecar records for a just-flushed segment and
// records each doc-id's segment in docSegment for later title lookups.
func (e *Engine) buildDocMetas(docIDs []uint32, segmentName string) []segment.DocMeta {
	e.docLengthsMu.RLock()
	e.titlesMu.RLock()
	metas := make([]segment.DocMeta, 0, len(docIDs))
	for _, id := range docIDs {
		key, ok := e.memIndex.DocKey(id)
		if !ok {
			continue
		}
		metas = append(metas, segment.DocMeta{
			DocID:  id,
			DocKey: key,
			Length: e.docLengths[key],
			Title:  e.titles[key],
		})
	}
	e.titlesMu.RUnlock()
	e.docLengthsMu.RUnlock()

	e.docSegmentMu.Lock()
	for _, m := range metas {
		e.docSegment[m.DocID] = segmentName
	}
	e.docSegmentMu.Unlock()
	return metas
}

func (e *Engine) Search(term string) (index.PostingList, error) {
	tokens := tokenizer.Tokenize(term)
	if len(tokens) == 0 {
		return nil, nil
	}
	normalizedTerm := tokens[0].Term
	allPostings := e.memIndex.Search(normalizedTerm)
	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	for _, reader := range readers {
		postings, err := reader.Search(normalizedTerm)
		if err != nil {
			e.logger.Error("segment search failed",
				"error", err,
			)
			continue
		}
		allPostings = append(allPostings, postings...)
	}
	allPostings = deduplicatePostings(allPostings)
	return allPostings, nil
}

func (e *Engine) GetDocLength(docID string) int {
	e.docLengthsMu.RLock()
	defer e.docLengthsMu.RUnlock()
	return e.docLengths[docID]
}

// DocKey resolves a shard-local interned doc-id back to its external string
// key via the memory index's DocIDMap (stable across flushes, see
// MemoryIndex.Reset).
func (e *Engine) DocKey(docID uint32) (string, bool) {
	return e.memIndex.DocKey(docID)
}

// GetDocLengthByID resolves docID to its external key and returns its token
// length, as required by rankers that operate over interned uint32 ids.
func (e *Engine) GetDocLengthByID(docID uint32) int {
	key, ok := e.DocKey(docID)
	if !ok {
		return 0
	}
	return e.GetDocLength(key)
}

func (e *Engine) GetAvgDocLength() float64 {
	e.docLengthsMu.RLock()
	defer e.docLengthsMu.RUnlock()
	if e.totalDocs == 0 {
		return 0
	}
	return float64(e.totalTokens) / float64(e.totalDocs)
}

func (e *Engine) GetTotalDocs() int64 {
	e.docLengthsMu.RLock()
	defer e.docLengthsMu.RUnlock()
	return e.totalDocs
}

// GetPendingTitle returns docKey's title if it is still held in memory
// because its segment has not been flushed yet. Callers that miss here must
// fall back to a disk read via the engine's title reader.
func (e *Engine) GetPendingTitle(docKey string) (string, bool) {
	e.titlesMu.RLock()
	defer e.titlesMu.RUnlock()
	title, ok := e.titles[docKey]
	return title, ok
}

// resolveTitleSegment reports which segment holds docID's doc-meta sidecar,
// for use by a titleReader.
func (e *Engine) resolveTitleSegment(docID uint32) (dataDir, segmentName string, ok bool) {
	e.docSegmentMu.RLock()
	defer e.docSegmentMu.RUnlock()
	name, ok := e.docSegment[docID]
	return e.cfg.DataDir, name, ok
}

// NewTitleReader returns an asyncread.DiskReader that hydrates titles for
// already-flushed documents from their segment's doc-meta sidecar, backed by
// a small fixed worker pool. Callers drive it through an asyncread.Pool.
func (e *Engine) NewTitleReader(workers int) asyncread.DiskReader {
	return newTitleReader(workers, e.resolveTitleSegment)
}

// AsyncReadWorkers returns the configured title-hydration worker count.
func (e *Engine) AsyncReadWorkers() int {
	return e.cfg.AsyncReadWorkers
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spdx") {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.restoreDocMeta(name, path)
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}

// restoreDocMeta re-hydrates docLengths, totalDocs, totalTokens, docSegment
// and the memory index's doc-id assignments from a recovered segment's
// doc-meta sidecar. Without this, every doc-id assigned before a restart
// would resolve to nothing: MemoryIndex.DocKey only knows ids assigned since
// process start, so ranker.Resolve would silently drop every previously
// indexed document from search results. A segment written before this
// sidecar format existed simply contributes no recovered metadata; its
// postings still serve search, just without restored lengths or titles.
func (e *Engine) restoreDocMeta(segmentName, segPath string) {
	metas, err := segment.ReadDocMeta(segPath)
	if err != nil {
		e.logger.Error("failed to read doc metadata sidecar, lengths and titles for this segment will not be restored",
			"segment", segmentName,
			"error", err,
		)
		return
	}
	if len(metas) == 0 {
		return
	}

	e.docLengthsMu.Lock()
	e.docSegmentMu.Lock()
	for _, meta := range metas {
		e.memIndex.RestoreDoc(meta.DocKey, meta.DocID)
		e.docLengths[meta.DocKey] = meta.Length
		e.totalDocs++
		e.totalTokens += int64(meta.Length)
		e.docSegment[meta.DocID] = segmentName
	}
	e.docSegmentMu.Unlock()
	e.docLengthsMu.Unlock()
}

func deduplicatePostings(postings index.PostingList) index.PostingList {
	if len(postings) <= 1 {
		return postings
	}
	seen := make(map[uint32]int)
	result := make(index.PostingList, 0, len(postings))
	for _, p := range postings {
		if idx, exists := seen[p.DocID]; exists {
			if p.Frequency > result[idx].Frequency {
				result[idx] = p
			}
		} else {
			seen[p.DocID] = len(result)
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}
