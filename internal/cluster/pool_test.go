package cluster

import "testing"

func TestConnectionPoolClampsZeroConnsPerShard(t *testing.T) {
	pool := NewConnectionPool(0, "", nil)
	if pool.connsPerShard != 1 {
		t.Fatalf("connsPerShard = %d, want 1 (Open Question decision #1)", pool.connsPerShard)
	}
}

func TestConnectionPoolAddIsIdempotentForSameEndpoint(t *testing.T) {
	pool := NewConnectionPool(2, "", nil)
	ep := Endpoint{Host: "127.0.0.1", Port: 7000}
	pool.Add("node-1", ep, false)
	entryBefore := pool.entries["node-1"]

	pool.Add("node-1", ep, false)
	entryAfter := pool.entries["node-1"]

	if entryBefore != entryAfter {
		t.Fatal("Add with the same endpoint should be a no-op, not replace the entry")
	}
}

func TestConnectionPoolAddReplacesOnDifferentEndpoint(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	pool.Add("node-1", Endpoint{Host: "127.0.0.1", Port: 7000}, false)
	first := pool.entries["node-1"]

	pool.Add("node-1", Endpoint{Host: "127.0.0.1", Port: 7001}, false)
	second := pool.entries["node-1"]

	if first == second {
		t.Fatal("Add with a different endpoint should replace the pool entry")
	}
}

func TestConnectionPoolDisconnectRemovesEntry(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	pool.Add("node-1", Endpoint{Host: "127.0.0.1", Port: 7000}, false)
	pool.Disconnect("node-1")
	if _, ok := pool.entries["node-1"]; ok {
		t.Fatal("expected pool entry to be removed after Disconnect")
	}
}

func TestConnectionPoolGetReturnsNoneWithoutConnected(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	pool.Add("node-1", Endpoint{Host: "127.0.0.1", Port: 7000}, false)
	if _, ok := pool.Get("node-1"); ok {
		t.Fatal("expected no Connected connection since connect=false")
	}
}
