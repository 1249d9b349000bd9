package asyncqueue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubmitDedupesByKey(t *testing.T) {
	q := New(func(spec string, docs []Document) error { return nil }, 10, time.Hour)
	q.Submit("idx", Document{Key: "doc1", Title: "first"})
	q.Submit("idx", Document{Key: "doc1", Title: "second"})
	q.Submit("idx", Document{Key: "doc2", Title: "third"})
	if got := q.PendingDocCount("idx"); got != 2 {
		t.Fatalf("PendingDocCount = %d, want 2 (dedup by key)", got)
	}
}

func TestRunProcessesBatchesAndClearsActive(t *testing.T) {
	var mu sync.Mutex
	var calls []struct {
		spec string
		n    int
	}
	indexFn := func(spec string, docs []Document) error {
		mu.Lock()
		calls = append(calls, struct {
			spec string
			n    int
		}{spec, len(docs)})
		mu.Unlock()
		return nil
	}
	q := New(indexFn, 2, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	q.Submit("idx", Document{Key: "a"})
	q.Submit("idx", Document{Key: "b"})

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for batch to be indexed")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if calls[0].spec != "idx" || calls[0].n != 2 {
		t.Fatalf("calls[0] = %+v, want spec=idx n=2", calls[0])
	}
	if q.PendingSpecCount() != 0 {
		t.Fatalf("PendingSpecCount() = %d, want 0 after processing", q.PendingSpecCount())
	}
}

func TestClaimLargestPicksBiggestSpec(t *testing.T) {
	q := New(func(spec string, docs []Document) error { return nil }, 1000, time.Hour)
	q.Submit("small", Document{Key: "a"})
	q.Submit("big", Document{Key: "a"})
	q.Submit("big", Document{Key: "b"})
	q.Submit("big", Document{Key: "c"})

	q.mu.Lock()
	spec, docs := q.claimLargest()
	q.mu.Unlock()

	if spec != "big" {
		t.Fatalf("claimLargest spec = %q, want \"big\"", spec)
	}
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3", len(docs))
	}
	if q.PendingSpecCount() != 1 {
		t.Fatalf("PendingSpecCount() = %d, want 1 (small still pending)", q.PendingSpecCount())
	}
}

func TestPauseResumeBlocksClaiming(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	q := New(func(spec string, docs []Document) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, 1, 5*time.Millisecond)
	q.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Submit("idx", Document{Key: "a"})
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 0 {
		t.Fatalf("calls = %d while paused, want 0", n)
	}

	q.Resume()
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for resumed processing")
		case <-time.After(time.Millisecond):
		}
	}
}
