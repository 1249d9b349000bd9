package cluster

import "testing"

const sampleTopologyText = `MYID node-a HASHFUNC CRC16 NUMSLOTS 16384 RANGES 2
SHARD node-a SLOTRANGE 0 8191 ADDR 10.0.0.1:6379 MASTER
SHARD node-b SLOTRANGE 8192 16383 ADDR 10.0.0.2:6379 MASTER
`

func TestParseTopology(t *testing.T) {
	topo, err := ParseTopology(sampleTopologyText)
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if topo.NumSlots != 16384 || topo.HashFunc != HashCRC16 {
		t.Fatalf("unexpected header: %+v", topo)
	}
	if len(topo.Shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(topo.Shards))
	}
	if topo.Shards[0].StartSlot != 0 || topo.Shards[0].EndSlot != 8191 {
		t.Errorf("shard 0 range = [%d,%d]", topo.Shards[0].StartSlot, topo.Shards[0].EndSlot)
	}
	if topo.Shards[1].Nodes[0].Endpoint.Host != "10.0.0.2" || topo.Shards[1].Nodes[0].Endpoint.Port != 6379 {
		t.Errorf("shard 1 node endpoint = %+v", topo.Shards[1].Nodes[0].Endpoint)
	}
	if !topo.IsValid() {
		t.Error("parsed topology should be valid")
	}
}

func TestParseTopologyAssignsDistinctNodeIDsAndSelf(t *testing.T) {
	topo, err := ParseTopology(sampleTopologyText)
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	a := topo.Shards[0].Nodes[0]
	b := topo.Shards[1].Nodes[0]
	if a.ID != "node-a" || b.ID != "node-b" {
		t.Fatalf("node IDs = %q, %q, want \"node-a\", \"node-b\"", a.ID, b.ID)
	}
	if !a.IsSelf() {
		t.Error("node-a should be flagged Self (matches MYID)")
	}
	if b.IsSelf() {
		t.Error("node-b should not be flagged Self")
	}
	self, shard, ok := topo.SelfNode()
	if !ok || self.ID != "node-a" || shard.StartSlot != 0 {
		t.Fatalf("SelfNode() = (%+v, %+v, %v), want node-a in shard [0,8191]", self, shard, ok)
	}
}

func TestParseTopologyRejectsBadNumSlots(t *testing.T) {
	text := `MYID n NUMSLOTS 20000 RANGES 0`
	if _, err := ParseTopology(text); err == nil {
		t.Fatal("expected error for NUMSLOTS > 16384")
	}
}

func TestParseTopologyRejectsMissingMyID(t *testing.T) {
	text := `RANGES 0`
	if _, err := ParseTopology(text); err == nil {
		t.Fatal("expected error for missing MYID")
	}
}

func TestParseTopologyRejectsInvalidSlotRange(t *testing.T) {
	text := `MYID n RANGES 1
SHARD 0 SLOTRANGE 100 50 ADDR 10.0.0.1:6379 MASTER
`
	if _, err := ParseTopology(text); err == nil {
		t.Fatal("expected error for start > end")
	}
}

func TestTopologyRenderParseFixedPoint(t *testing.T) {
	topo, err := ParseTopology(sampleTopologyText)
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	rendered := topo.Render("node-a")
	reparsed, err := ParseTopology(rendered)
	if err != nil {
		t.Fatalf("re-parsing rendered topology: %v\n%s", err, rendered)
	}
	if reparsed.NumSlots != topo.NumSlots || reparsed.HashFunc != topo.HashFunc || len(reparsed.Shards) != len(topo.Shards) {
		t.Fatalf("round trip mismatch: %+v vs %+v", reparsed, topo)
	}
	for i := range topo.Shards {
		if reparsed.Shards[i].StartSlot != topo.Shards[i].StartSlot || reparsed.Shards[i].EndSlot != topo.Shards[i].EndSlot {
			t.Errorf("shard %d range mismatch after round trip", i)
		}
		if reparsed.Shards[i].Nodes[0].ID != topo.Shards[i].Nodes[0].ID {
			t.Errorf("shard %d node id mismatch after round trip: %q vs %q",
				i, reparsed.Shards[i].Nodes[0].ID, topo.Shards[i].Nodes[0].ID)
		}
	}
}
