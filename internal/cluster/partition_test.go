package cluster

import "testing"

func TestGetSlotByPartition(t *testing.T) {
	// 2 shards over 16384 slots: step = 8192.
	// partition 0 -> slot 8191, partition 1 -> slot 16383.
	if got, want := GetSlotByPartition(16384, 2, 0), 8191; got != want {
		t.Errorf("partition 0 slot = %d, want %d", got, want)
	}
	if got, want := GetSlotByPartition(16384, 2, 1), 16383; got != want {
		t.Errorf("partition 1 slot = %d, want %d", got, want)
	}
}

func TestGetSlotByPartitionMatchesShardIndex(t *testing.T) {
	// Universal invariant: for partitions == shards, the slot
	// GetSlotByPartition(i) yields belongs to shard i.
	numSlots := 16384
	numShards := 4
	step := numSlots / numShards
	shards := make([]Shard, numShards)
	for i := 0; i < numShards; i++ {
		shards[i] = Shard{StartSlot: i * step, EndSlot: (i+1)*step - 1, Nodes: []Node{{ID: "n"}}}
	}
	topo := &Topology{NumSlots: numSlots, Shards: shards}

	for i := 0; i < numShards; i++ {
		slot := GetSlotByPartition(numSlots, numShards, i)
		sh, ok := topo.FindShard(slot)
		if !ok {
			t.Fatalf("partition %d: no shard owns slot %d", i, slot)
		}
		if sh.StartSlot != shards[i].StartSlot {
			t.Errorf("partition %d: slot %d belongs to shard starting %d, want %d", i, slot, sh.StartSlot, shards[i].StartSlot)
		}
	}
}

func TestSlotTagHashesToAssignedSlot(t *testing.T) {
	numSlots := 64
	ctx := NewPartitionCtx(4, nil, 0)
	table := buildSlotTagTable(HashCRC16, numSlots)
	ctx.SetSlotTable(table, numSlots)

	for p := 0; p < 4; p++ {
		tag, ok := ctx.SlotTag(p)
		if !ok {
			t.Fatalf("partition %d: no tag", p)
		}
		wantSlot := GetSlotByPartition(numSlots, 4, p)
		gotSlot := int(HashCRC16.Hash(tag)) % numSlots
		if gotSlot != wantSlot {
			t.Errorf("partition %d: tag %q hashes to slot %d, want %d", p, tag, gotSlot, wantSlot)
		}
	}
}
