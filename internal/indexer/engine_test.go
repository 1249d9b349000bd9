package indexer

import (
	"testing"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer/asyncread"
	"github.com/shardmesh/searchcore/internal/indexer/index"
	"github.com/shardmesh/searchcore/pkg/config"
)

func newTestEngine(t *testing.T, dataDir string) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexerConfig{
		DataDir:        dataDir,
		SegmentMaxSize: 1 << 30, // large enough that IndexDocument never auto-flushes
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngineSurvivesRestartAfterFlush(t *testing.T) {
	dir := t.TempDir()

	e := newTestEngine(t, dir)
	if err := e.IndexDocument("doc-1", "Hello World", "first document body"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := e.IndexDocument("doc-2", "Another Title", "second document body"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted := newTestEngine(t, dir)
	defer restarted.Close()

	postings, err := restarted.Search("hello")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("len(postings) = %d, want 1", len(postings))
	}

	key, ok := restarted.DocKey(postings[0].DocID)
	if !ok || key != "doc-1" {
		t.Fatalf("DocKey(%d) = %q, %v, want doc-1, true (restart must restore the doc-id bijection)", postings[0].DocID, key, ok)
	}
	if got := restarted.GetDocLengthByID(postings[0].DocID); got == 0 {
		t.Fatalf("GetDocLengthByID(%d) = 0, want a restored non-zero length", postings[0].DocID)
	}
	if restarted.GetTotalDocs() != 2 {
		t.Fatalf("GetTotalDocs() = %d, want 2 (restored from the doc-meta sidecar)", restarted.GetTotalDocs())
	}
}

func TestEngineTitleHydrationAfterFlush(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	defer e.Close()

	if err := e.IndexDocument("doc-1", "Hello World", "body text"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	// Before flushing, the title is still in memory.
	if title, ok := e.GetPendingTitle("doc-1"); !ok || title != "Hello World" {
		t.Fatalf("GetPendingTitle before flush = %q, %v, want Hello World, true", title, ok)
	}

	if err := e.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// After flushing, the title is no longer cached in memory...
	if _, ok := e.GetPendingTitle("doc-1"); ok {
		t.Fatalf("GetPendingTitle after flush should miss: title must not stay resident once flushed")
	}

	// ...but is recoverable from disk via the async title reader.
	postings, err := e.Search("hello")
	if err != nil || len(postings) != 1 {
		t.Fatalf("Search(hello) = %v, %v, want one posting", postings, err)
	}
	docID := postings[0].DocID

	reader := e.NewTitleReader(2)
	defer reader.Close()
	pool := asyncread.NewPool(reader, 1)
	pool.Enqueue(&asyncread.IndexResult{Posting: index.Posting{DocID: docID}})
	pool.Refill()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if result, ok := pool.PopReadyResult(); ok {
			title, _ := result.Meta.(string)
			if title != "Hello World" {
				t.Fatalf("hydrated title = %q, want Hello World", title)
			}
			return
		}
		pool.Poll(50*time.Millisecond, deadline)
	}
	t.Fatalf("title never hydrated within the deadline")
}
