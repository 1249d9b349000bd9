package cluster

import (
	"context"
	"testing"
	"time"
)

func validTwoShardTopology() *Topology {
	return &Topology{
		NumSlots: 16384,
		HashFunc: HashCRC16,
		Shards: []Shard{
			{StartSlot: 0, EndSlot: 8191, Nodes: []Node{{ID: "n0", Flags: NodeMaster | NodeSelf}}},
			{StartSlot: 8192, EndSlot: 16383, Nodes: []Node{{ID: "n1", Flags: NodeMaster}}},
		},
	}
}

func TestTopologyIsValid(t *testing.T) {
	topo := validTwoShardTopology()
	if !topo.IsValid() {
		t.Fatal("expected valid topology")
	}
}

func TestTopologyInvalidWithGap(t *testing.T) {
	topo := &Topology{
		NumSlots: 16384,
		Shards: []Shard{
			{StartSlot: 0, EndSlot: 100, Nodes: []Node{{ID: "n0"}}},
		},
	}
	if topo.IsValid() {
		t.Fatal("expected invalid: shard widths do not cover num-slots")
	}
}

func TestTopologyInvalidMultipleSelf(t *testing.T) {
	topo := validTwoShardTopology()
	topo.Shards[1].Nodes[0].Flags |= NodeSelf
	if topo.IsValid() {
		t.Fatal("expected invalid: more than one Self node")
	}
}

func TestTopologyInvalidEmptyShard(t *testing.T) {
	topo := &Topology{
		NumSlots: 16384,
		Shards: []Shard{
			{StartSlot: 0, EndSlot: 16383, Nodes: nil},
		},
	}
	if topo.IsValid() {
		t.Fatal("expected invalid: shard with zero nodes (Open Question decision #3)")
	}
}

func TestFindShard(t *testing.T) {
	topo := validTwoShardTopology()
	sh, ok := topo.FindShard(7638)
	if !ok || sh.StartSlot != 0 {
		t.Fatalf("FindShard(7638) = (%v, %v), want shard 0", sh, ok)
	}
	sh, ok = topo.FindShard(12182)
	if !ok || sh.StartSlot != 8192 {
		t.Fatalf("FindShard(12182) = (%v, %v), want shard 1", sh, ok)
	}
}

func TestUpdateTopologyRejectsInvalid(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	mgr := NewTopologyManager(pool)

	good := validTwoShardTopology()
	if err := mgr.UpdateTopology(good); err != nil {
		t.Fatalf("unexpected error applying valid topology: %v", err)
	}

	bad := &Topology{NumSlots: 16384, Shards: []Shard{{StartSlot: 0, EndSlot: 10, Nodes: []Node{{ID: "n0"}}}}}
	if err := mgr.UpdateTopology(bad); err == nil {
		t.Fatal("expected error applying invalid topology")
	}

	// Prior topology must remain intact.
	if mgr.Snapshot() != good {
		t.Fatal("rejected topology must leave the prior one intact")
	}
}

func TestUpdateTopologyIsIdempotent(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	mgr := NewTopologyManager(pool)
	topo := validTwoShardTopology()

	if err := mgr.UpdateTopology(topo); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if mgr.Nodes().Len() != 2 {
		t.Fatalf("expected 2 nodes after first update, got %d", mgr.Nodes().Len())
	}
	if err := mgr.UpdateTopology(topo); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if mgr.Nodes().Len() != 2 {
		t.Fatalf("expected 2 nodes after second update, got %d", mgr.Nodes().Len())
	}
}

func TestWaitReadyTimesOutBeforeFirstTopology(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	mgr := NewTopologyManager(pool)

	start := time.Now()
	ok := mgr.WaitReady(context.Background(), 20*time.Millisecond)
	if ok {
		t.Fatal("expected WaitReady to report not-ready before any topology was applied")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("WaitReady returned early after %v, want >= 20ms", elapsed)
	}
}

func TestWaitReadyReturnsImmediatelyOnceApplied(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	mgr := NewTopologyManager(pool)
	if err := mgr.UpdateTopology(validTwoShardTopology()); err != nil {
		t.Fatalf("UpdateTopology: %v", err)
	}

	start := time.Now()
	ok := mgr.WaitReady(context.Background(), time.Second)
	if !ok {
		t.Fatal("expected WaitReady to report ready once topology was applied")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("WaitReady took %v, expected an immediate return", elapsed)
	}
}

func TestWaitReadyUnblocksWhenTopologyArrivesConcurrently(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	mgr := NewTopologyManager(pool)

	done := make(chan bool, 1)
	go func() {
		done <- mgr.WaitReady(context.Background(), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := mgr.UpdateTopology(validTwoShardTopology()); err != nil {
		t.Fatalf("UpdateTopology: %v", err)
	}

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected WaitReady to report ready once a concurrent update landed")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not unblock after UpdateTopology")
	}
}
