package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileTopologyProviderFetchesCurrentFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.txt")
	if err := os.WriteFile(path, []byte(sampleTopologyText), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	provider := NewFileTopologyProvider(path)
	topo, err := provider.FetchTopology(context.Background())
	if err != nil {
		t.Fatalf("FetchTopology: %v", err)
	}
	if len(topo.Shards) != 2 {
		t.Fatalf("len(Shards) = %d, want 2", len(topo.Shards))
	}

	// Re-reads the file on every call, so an operator edit is picked up
	// without restarting the provider.
	updated := `MYID node-a HASHFUNC CRC16 NUMSLOTS 16384 RANGES 1
SHARD 0 SLOTRANGE 0 16383 ADDR 10.0.0.1:6379 MASTER
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("WriteFile (update): %v", err)
	}
	topo2, err := provider.FetchTopology(context.Background())
	if err != nil {
		t.Fatalf("FetchTopology after update: %v", err)
	}
	if len(topo2.Shards) != 1 {
		t.Fatalf("len(Shards) after update = %d, want 1", len(topo2.Shards))
	}
}

func TestFileTopologyProviderMissingFile(t *testing.T) {
	provider := NewFileTopologyProvider(filepath.Join(t.TempDir(), "missing.txt"))
	if _, err := provider.FetchTopology(context.Background()); err == nil {
		t.Fatal("expected an error for a missing topology file")
	}
}
