package indexer

import (
	"testing"
	"time"

	"github.com/shardmesh/searchcore/internal/indexer/segment"
)

func TestTitleReaderHydratesFromSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := segment.WriteDocMeta(dir, "seg_a.spdx", []segment.DocMeta{
		{DocID: 1, DocKey: "doc-1", Length: 5, Title: "First Title"},
		{DocID: 2, DocKey: "doc-2", Length: 7, Title: "Second Title"},
	}); err != nil {
		t.Fatalf("WriteDocMeta: %v", err)
	}

	resolve := func(docID uint32) (string, string, bool) {
		if docID == 1 || docID == 2 {
			return dir, "seg_a.spdx", true
		}
		return "", "", false
	}
	r := newTitleReader(2, resolve)
	defer r.Close()

	if !r.AddAsyncRead(1, 100) {
		t.Fatalf("AddAsyncRead(1) rejected")
	}
	if !r.AddAsyncRead(2, 200) {
		t.Fatalf("AddAsyncRead(2) rejected")
	}
	if !r.AddAsyncRead(99, 300) {
		t.Fatalf("AddAsyncRead(99) rejected")
	}

	got := make(map[uint64]string)
	var failedIDs []uint64
	deadline := time.Now().Add(2 * time.Second)
	for len(got)+len(failedIDs) < 3 && time.Now().Before(deadline) {
		ready, failed, _ := r.PollAsyncReads(100*time.Millisecond, time.Time{})
		for _, item := range ready {
			title, _ := item.Meta.(string)
			got[item.UserData] = title
		}
		failedIDs = append(failedIDs, failed...)
	}

	if got[100] != "First Title" {
		t.Fatalf("title for userData 100 = %q, want First Title", got[100])
	}
	if got[200] != "Second Title" {
		t.Fatalf("title for userData 200 = %q, want Second Title", got[200])
	}
	if len(failedIDs) != 1 || failedIDs[0] != 300 {
		t.Fatalf("failed = %v, want [300] (doc-id 99 has no segment)", failedIDs)
	}
}
