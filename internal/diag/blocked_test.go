package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAddRemoveQueryTracksCount(t *testing.T) {
	r := NewRegistry()
	h := r.AddQuery("products-idx", "@title:phone")
	if queries, _ := r.Counts(); queries != 1 {
		t.Fatalf("queries = %d, want 1", queries)
	}
	r.RemoveQuery(h)
	if queries, _ := r.Counts(); queries != 0 {
		t.Fatalf("queries = %d, want 0 after remove", queries)
	}
}

func TestAddRemoveCursorTracksCount(t *testing.T) {
	r := NewRegistry()
	h := r.AddCursor("products-idx", 42, 10)
	if _, cursors := r.Counts(); cursors != 1 {
		t.Fatalf("cursors = %d, want 1", cursors)
	}
	r.RemoveCursor(h)
	if _, cursors := r.Counts(); cursors != 0 {
		t.Fatalf("cursors = %d, want 0 after remove", cursors)
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	r.AddQuery("idx-a", "query-a")
	r.AddQuery("idx-b", "query-b")

	snap := r.Snapshot()
	if len(snap.Queries) != 2 {
		t.Fatalf("len(Queries) = %d, want 2", len(snap.Queries))
	}
	if snap.Queries[0].Spec != "idx-a" || snap.Queries[1].Spec != "idx-b" {
		t.Fatalf("Queries = %+v, want idx-a then idx-b", snap.Queries)
	}
}

func TestHandlerBlockedServesSnapshot(t *testing.T) {
	r := NewRegistry()
	r.AddQuery("idx-a", "query-a")
	r.AddCursor("idx-a", 7, 100)

	h := NewHandler(r)
	req := httptest.NewRequest(http.MethodGet, "/debug/blocked", nil)
	rec := httptest.NewRecorder()
	h.Blocked(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(snap.Queries) != 1 || len(snap.Cursors) != 1 {
		t.Fatalf("snap = %+v, want 1 query and 1 cursor", snap)
	}
}
