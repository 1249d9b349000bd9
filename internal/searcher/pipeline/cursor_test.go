package pipeline

import (
	"testing"
	"time"
)

func TestCursorChunkedReads(t *testing.T) {
	items := make([]*SearchResult, 0, 10)
	for i := uint32(0); i < 10; i++ {
		items = append(items, &SearchResult{DocID: i})
	}
	src := newSliceSource(items...)
	table := NewCursorTable(time.Minute)
	cur := table.Register(src, newTestCtx(), 4, 0)

	chunk1, done1, err := cur.Read()
	if err != nil || done1 || len(chunk1) != 4 {
		t.Fatalf("chunk1: len=%d done=%v err=%v", len(chunk1), done1, err)
	}
	chunk2, done2, err := cur.Read()
	if err != nil || done2 || len(chunk2) != 4 {
		t.Fatalf("chunk2: len=%d done=%v err=%v", len(chunk2), done2, err)
	}
	chunk3, done3, err := cur.Read()
	if err != nil || !done3 || len(chunk3) != 2 {
		t.Fatalf("chunk3: len=%d done=%v err=%v", len(chunk3), done3, err)
	}
}

func TestCursorTableReapsIdle(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1})
	table := NewCursorTable(time.Minute)
	cur := table.Register(src, newTestCtx(), 1, time.Millisecond)
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}
	n := table.ReapIdle(time.Now().Add(time.Hour))
	if n != 1 {
		t.Fatalf("ReapIdle reaped %d, want 1", n)
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d after reap, want 0", table.Len())
	}
	if !src.freed {
		t.Error("reaped cursor's chain was not Free()'d")
	}
	if _, ok := table.Get(cur.ID); ok {
		t.Error("reaped cursor still retrievable by id")
	}
}

func TestCursorTableDefaultMaxIdle(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1})
	table := NewCursorTable(5 * time.Millisecond)
	table.Register(src, newTestCtx(), 1, 0)
	if n := table.ReapIdle(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("ReapIdle() = %d, want 1 (default maxIdle should apply when 0 passed)", n)
	}
}

func TestCursorTableObserversFireOnOpenAndClose(t *testing.T) {
	src := newSliceSource(&SearchResult{DocID: 1})
	table := NewCursorTable(time.Minute)

	var opened, closed uint64
	table.SetObservers(
		func(cursorID uint64, chunkSize int) any {
			opened = cursorID
			return "token-" + string(rune('A'+chunkSize))
		},
		func(token any) {
			if token != "token-B" {
				t.Errorf("onClose token = %v, want token-B", token)
			}
			closed = opened
		},
	)

	cur := table.Register(src, newTestCtx(), 1, 0)
	if opened != cur.ID {
		t.Fatalf("onOpen saw cursorID %d, want %d", opened, cur.ID)
	}

	table.Remove(cur.ID)
	if closed != cur.ID {
		t.Fatalf("onClose never fired for cursor %d", cur.ID)
	}
}
